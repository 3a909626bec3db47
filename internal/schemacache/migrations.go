package schemacache

import "embed"

// migrationsFS embeds the schema-cache table migrations into the binary.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS
