package postgres

import "embed"

// migrationFiles embeds the goose SQL migrations so the binary ships them
// without a separate deploy step; Migrate applies them via goose's embedded
// filesystem provider.
//
//go:embed migrations/*.sql
var migrationFiles embed.FS
