// Package db holds the SQL migrations compiled into the binaries.
package db

import "embed"

// Migrations contains the golang-migrate files under migrations/.
//
//go:embed migrations/*.sql
var Migrations embed.FS
