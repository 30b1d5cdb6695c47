// Package panel holds the settings page template and its static assets,
// embedded into the binary with go:embed.
//
// A web.templates_dir on disk with the same templates/ and static/ layout
// replaces the embedded copy, so the page can be edited without a rebuild.
package panel
