// Package migrations embeds the schema migrations for the document
// store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
