// Package migrations embeds the goose SQL migrations that create the
// notebook schema. The repository manager applies them at startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
