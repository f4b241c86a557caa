// Package internal contains the implementation packages of pantry.
//
// # Package Organization
//
//   - assets: esbuild bundling of ingredient scripts and styles
//   - config: configuration loading and validation
//   - docs: documentation rendering with embedded previews
//   - errors: typed errors, HTTP status mapping and the error overlay
//   - helpers: Lua handlebars helper modules
//   - livereload: websocket reload notifications
//   - logging: structured logging on log/slog
//   - middleware: HTTP middleware chain, request logging and mount paths
//   - modelpath: model subtree selection for ?modelPath=
//   - pantry: ingredient discovery and partial dependency resolution
//   - preview: handlebars preview rendering
//   - readiness: one-shot asynchronous initialization gates
//   - router: regular expression routing under a mount path
//   - server: composition of the middlewares into one HTTP server
//   - ui: the ingredient index page
//   - version: build information
//   - watcher: debounced file system monitoring
package internal
