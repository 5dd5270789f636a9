// Package templates holds the server-rendered HTML.
package templates

import "embed"

//go:embed layouts pages partials
var FS embed.FS
