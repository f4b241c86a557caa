// Package docs is the overview of pantry, a development server for
// directories of handlebars components.
//
// A pantry is a directory tree in which every directory holding an
// ingredient.md is an ingredient. The files of an ingredient are classified
// into entry points by name:
//
//	index.hbs       handlebars template
//	model.json      render model (also .yaml, .yml, .toml, .lua)
//	preview.hbs     preview template wrapping the ingredient
//	index.js        script bundled into assets/index.js
//	preview.js      preview-only script bundled after index.js
//	index.scss      sass styles bundled into assets/index.css
//	index.less      less styles bundled into assets/index.css
//	static/         files served verbatim under assets/static/
//
// Ingredients reference each other's templates as partials named
// "<pantry>/<ingredient>", for example {{> kitchen/button}}.
//
// # Quick Start
//
//	// Serve ./components as the "kitchen" pantry on :8080
//	pantry serve --base-dir ./components --namespace kitchen
//
//	// List the ingredients and the partials they depend on
//	pantry list -n kitchen --with-deps
//
// # Routes
//
// Relative to the mount path:
//
//	/                          index of every ingredient
//	/<ingredient>/preview      rendered preview; ?modelPath=a.b[0] selects a model subtree
//	/<ingredient>/docs         rendered ingredient.md with previews embedded as iframes
//	/<ingredient>/assets/...   bundled and static assets
//	/__livereload              websocket reload notifications
//	/healthz                   readiness of the preview, docs and assets middlewares
//
// # Architecture
//
//   - CLI Commands (cmd/): Cobra-based command interface
//   - Pantry loading (internal/pantry/): ingredient discovery and partial resolution
//   - Preview (internal/preview/): handlebars rendering with per-request partials
//   - Documentation (internal/docs/): markdown rendering and preview embedding
//   - Assets (internal/assets/): esbuild bundling with sass support
//   - Development Server (internal/server/): routing, live reload and health
//   - File Watcher (internal/watcher/): debounced file system monitoring
//   - Configuration (internal/config/): Viper-based configuration management
//
// # Configuration
//
// Pantry reads .pantry.yml, PANTRY_* environment variables and command-line
// flags, in increasing order of precedence.
//
//	server:
//	  host: localhost
//	  port: 8080
//	  mount_path: /
//
//	pantry:
//	  namespace: kitchen
//	  base_dir: ./components
//
//	preview:
//	  default_model: ./fixtures/default.yaml
//	  base_model:
//	    site: Kitchen
//	  helpers:
//	    - text
//	    - ./lib/dates.lua
//
//	assets:
//	  entry_order: ["*", "javaScript", "previewScript"]
//	  minify: false
//
//	development:
//	  hot_reload: true
//	  debounce: 300ms
//
// # Helpers
//
// A helper module is a Lua file returning a table of functions. Each function
// is registered as a handlebars helper under its table key. Bare module names
// resolve to helpers/<name>.lua in the working directory.
//
//	return {
//	  shout = function(s) return string.upper(s) .. "!" end,
//	}
package docs
