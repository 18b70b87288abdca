// Package migrations embeds the metadata store's schema migrations.
package migrations

import "embed"

// FS holds the numbered golang-migrate up/down files.
//
//go:embed *.sql
var FS embed.FS
