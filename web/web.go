// Package web embeds the HTML templates and static assets so the binary
// runs from any working directory.
package web

import "embed"

// Templates holds templates/*.html. base.html is the layout every page
// extends through {{define "content"}}.
//
//go:embed templates/*.html
var Templates embed.FS

// Static holds static/*, served under /static/.
//
//go:embed static
var Static embed.FS
