// Package db embeds the relational schema migrations so release builds
// (tag embed_migrations) do not depend on the working directory.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
