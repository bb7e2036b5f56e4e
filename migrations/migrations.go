// Package migrations embeds the schema migration files so the migrate
// command and integration tests run the exact same DDL.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
