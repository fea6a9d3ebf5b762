// Package migrations embeds the ClickHouse schema migrations shipped with
// the service binary.
package migrations

import "embed"

// FS holds the versioned migration files the analytics migrator applies.
//
//go:embed *
var FS embed.FS
