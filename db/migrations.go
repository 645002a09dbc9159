// Package db embeds the SQL migrations for every supported engine.
package db

import "embed"

// Migrations holds one directory per engine under migrations/.
//
//go:embed migrations
var Migrations embed.FS
