// Package appfs embeds the static assets the binaries need at runtime,
// first of all the database migrations.
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
