// Package scripts embeds the Risor artifact scripts shipped with gramstats.
package scripts

import "embed"

// FS holds every bundled .risor script.
//
//go:embed *.risor
var FS embed.FS
