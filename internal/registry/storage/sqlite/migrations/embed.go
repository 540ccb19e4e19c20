// Package migrations contains embedded SQL migrations for the SQLite store.
package migrations

import "embed"

//go:embed registry/*.sql
var RegistryFS embed.FS
