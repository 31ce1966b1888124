// Package web embeds the HTML templates and static assets so the binary
// ships self-contained.
package web

import "embed"

//go:embed all:templates
var Templates embed.FS

//go:embed all:static
var Static embed.FS
