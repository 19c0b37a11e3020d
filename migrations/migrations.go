// Package migrations embeds the arcade schema so the binaries carry it
// and apply it on startup.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
