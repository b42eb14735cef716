// Package appfs exposes the app's embedded static assets:
// database migrations, email templates and the common-passwords list.
package appfs

import "embed"

//go:embed assets migrations all:templates
var FS embed.FS
