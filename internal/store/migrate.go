package store

import "embed"

// migrations holds one goose migration set per dialect.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS
