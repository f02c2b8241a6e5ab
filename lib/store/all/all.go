// Package all registers every storage backend a config file can name.
package all

import (
	_ "github.com/TecharoHQ/formguard/lib/store/bbolt"
	_ "github.com/TecharoHQ/formguard/lib/store/memory"
	_ "github.com/TecharoHQ/formguard/lib/store/valkey"
)
