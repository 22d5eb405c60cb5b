// Package migrations holds the idempotent schema revisions of the users table.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
