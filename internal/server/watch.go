package server

import (
	"context"
	"path/filepath"

	"github.com/conneroisu/pantry/internal/pantry"
	"github.com/conneroisu/pantry/internal/watcher"
)

func (s *Server) startWatcher(ctx context.Context) error {
	root, err := filepath.Abs(s.cfg.Pantry.BaseDir)
	if err != nil {
		return err
	}
	ignore := s.cfg.Pantry.Ignore
	if ignore == nil {
		ignore = pantry.DefaultIgnore()
	}

	fw, err := watcher.NewFileWatcher(s.cfg.Development.Debounce, s.logger)
	if err != nil {
		return err
	}
	ignored := watcher.IgnoreFilter(root, ignore)
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoEditorFilter)
	fw.AddFilter(ignored)
	fw.AddHandler(s.handleFileChange)

	if err := fw.AddRecursive(root, ignored); err != nil {
		_ = fw.Stop()
		return err
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return err
	}

	s.serverMutex.Lock()
	s.watcher = fw
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "Watching pantry for changes", "dir", root)
	return nil
}

// handleFileChange rebuilds the assets when a bundled file changed; the
// rebuild triggers the reload. Other changes only need open pages to reload,
// since templates, models and docs are read on every request.
func (s *Server) handleFileChange(ctx context.Context, events []watcher.ChangeEvent) error {
	paths := make([]string, 0, len(events))
	rebuild := false
	for _, event := range events {
		s.logger.Debug(ctx, "File changed", "path", event.Path, "type", event.Type.String())
		paths = append(paths, event.Path)
		if s.assets.Affects(event.Path) {
			rebuild = true
		}
	}

	if rebuild {
		return s.assets.Rebuild(ctx)
	}
	s.hub.Reload(paths...)
	return nil
}
