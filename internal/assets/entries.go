package assets

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conneroisu/pantry/internal/pantry"
)

// DefaultEntryPosition marks where kinds not named in an entry order go.
const DefaultEntryPosition = "*"

// DefaultGlobalName is the global a standalone javaScript entry is exposed as.
const DefaultGlobalName = "ingredientExports"

// exposePrefix introduces an entry exposed as a global: "expose:<global>!<path>".
const exposePrefix = "expose:"

// DefaultEntryOrder builds styles and other kinds first, then scripts, then
// preview scripts.
func DefaultEntryOrder() []string {
	return []string{DefaultEntryPosition, pantry.KindJavaScript, pantry.KindPreviewScript}
}

// EntryHandler maps an entry point of an ingredient to a bundle entry. It
// returns false when the entry point takes no part in the bundle.
type EntryHandler func(ing *pantry.Ingredient, kind string) (string, bool)

// DefaultEntryHandler bundles the entry point file as is.
func DefaultEntryHandler(ing *pantry.Ingredient, kind string) (string, bool) {
	path := ing.EntryPath(kind)
	return path, path != ""
}

// NoEntry leaves the entry point out of the bundle.
func NoEntry(*pantry.Ingredient, string) (string, bool) {
	return "", false
}

// ExposeJavaScript returns the handler for javaScript entry points. When the
// ingredient has no previewScript, its script's exports are assigned to
// globalThis[globalName] so the preview page can reach them.
func ExposeJavaScript(globalName string) EntryHandler {
	return func(ing *pantry.Ingredient, _ string) (string, bool) {
		if !ing.Has(pantry.KindJavaScript) || ing.Has(pantry.KindPreviewScript) {
			return "", false
		}
		return Expose(globalName, ing.EntryPath(pantry.KindJavaScript)), true
	}
}

// DefaultEntryHandlers returns the built-in handler table.
func DefaultEntryHandlers(globalName string) map[string]EntryHandler {
	return map[string]EntryHandler{
		pantry.KindHandlebars: NoEntry,
		pantry.KindJavaScript: ExposeJavaScript(globalName),
		pantry.KindModel:      NoEntry,
		pantry.KindPreview:    NoEntry,
	}
}

// Expose formats an entry that assigns path's exports to a global.
func Expose(globalName, path string) string {
	return exposePrefix + globalName + "!" + path
}

// parseEntry splits an entry into the imported path and, for exposed
// entries, the global name.
func parseEntry(entry string) (path, global string) {
	rest, ok := strings.CutPrefix(entry, exposePrefix)
	if !ok {
		return entry, ""
	}
	global, path, ok = strings.Cut(rest, "!")
	if !ok {
		return entry, ""
	}
	return path, global
}

// validateEntryOrder requires exactly one default position marker.
func validateEntryOrder(order []string) error {
	count := 0
	for _, kind := range order {
		if kind == DefaultEntryPosition {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("entry order must specify the default position %q exactly once", DefaultEntryPosition)
	}
	return nil
}

// SortKinds orders kinds by their position in order. Kinds not named take
// the position of the default marker; ties keep their input order.
func SortKinds(kinds, order []string) []string {
	position := make(map[string]int, len(order))
	for i, kind := range order {
		position[kind] = i
	}
	fallback := position[DefaultEntryPosition]

	pos := func(kind string) int {
		if p, ok := position[kind]; ok {
			return p
		}
		return fallback
	}

	sorted := append([]string(nil), kinds...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return pos(sorted[i]) < pos(sorted[j])
	})
	return sorted
}

// Entries returns the bundle entries of ing in build order.
func Entries(ing *pantry.Ingredient, order []string, handlers map[string]EntryHandler, fallback EntryHandler) []string {
	var entries []string
	for _, kind := range SortKinds(ing.Kinds(), order) {
		handler := handlers[kind]
		if handler == nil {
			handler = fallback
		}
		if entry, ok := handler(ing, kind); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}
