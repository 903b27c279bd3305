// Package assets embeds the files shipped inside the binaries: SQL migrations, email templates
// and the common passwords list used by the password policy.
package assets

import "embed"

//go:embed migrations/*.sql templates/email/* common-passwords.txt
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
	CommonPasswords   = "common-passwords.txt"
)
