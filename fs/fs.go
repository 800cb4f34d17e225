// Package appfs exposes the files bundled into the binaries: SQL migrations, email templates and assets.
package appfs

import "embed"

//go:embed migrations all:templates assets
var FS embed.FS
