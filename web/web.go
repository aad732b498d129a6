// Package web embeds the HTML templates so the binary and tests do not
// depend on the working directory.
package web

import "embed"

//go:embed templates/*.html
var Templates embed.FS
