package storage

import "embed"

// Migrations holds the schema applied by db.Migrate with dir "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS
