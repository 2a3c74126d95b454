// Package scripts embeds the bundled Risor report scripts.
package scripts

import "embed"

// FS holds report/*.risor. Paths inside are relative, e.g.
// "report/calls.risor".
//
//go:embed report/*.risor
var FS embed.FS
