package internal

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// FastHash is a non-cryptographic hash used to turn user-controlled
// identifiers, such as thread IDs, into short store keys. Never use it where
// an attacker benefits from a collision.
func FastHash(text string) string {
	h := xxhash.Sum64String(text)
	return strconv.FormatUint(h, 16)
}
