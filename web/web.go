// Package web embeds the HTML templates of the catalog page, so the binary
// can be copied anywhere next to its biblioteca.db and still serve its UI.
package web

import "embed"

// Templates holds templates/base.html and templates/index.html.
//
//go:embed templates/*.html
var Templates embed.FS
