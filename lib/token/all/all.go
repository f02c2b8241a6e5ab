// Package all is a meta-package that imports all token formats.
package all

import (
	_ "github.com/TecharoHQ/formguard/lib/token/jwt"
	_ "github.com/TecharoHQ/formguard/lib/token/sealed"
	_ "github.com/TecharoHQ/formguard/lib/token/signed"
)
