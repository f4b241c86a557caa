// Package cmd provides the command-line interface for pantry.
//
// This package implements the CLI commands using the Cobra framework.
//
// # Available Commands
//
//   - serve: Start the development server for a pantry
//   - list: List the ingredients of a pantry and their entry points
//   - version: Show version information
//
// # Command Examples
//
//	// Serve the pantry in ./components as "kitchen"
//	pantry serve --base-dir ./components --namespace kitchen
//
//	// Serve under a mount path with a helper module
//	pantry serve -n kitchen --mount /ui --helpers ./helpers/text.lua
//
//	// List ingredients with their partial dependencies as JSON
//	pantry list -n kitchen -o json --with-deps
//
// # Configuration
//
// Flags override PANTRY_ environment variables, which override .pantry.yml.
// See the config package for the file layout.
package cmd
