package internal

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

var (
	ErrNoSecret       = errors.New("secret: no secret key configured, set SECRET_KEY or SECRET_KEY_FILE")
	ErrSecretTwice    = errors.New("secret: do not specify both SECRET_KEY and SECRET_KEY_FILE")
	ErrSecretTooShort = errors.New("secret: secret key is too short, use at least 16 bytes")
)

const minimumSecretBytes = 16

// LoadSecret returns the process-wide secret key from either its literal
// value or a file containing it. Surrounding whitespace in the file is
// ignored.
func LoadSecret(value, fname string) ([]byte, error) {
	var result []byte

	switch {
	case value != "" && fname != "":
		return nil, ErrSecretTwice
	case value != "":
		result = []byte(value)
	case fname != "":
		data, err := os.ReadFile(fname)
		if err != nil {
			return nil, fmt.Errorf("secret: can't read SECRET_KEY_FILE %s: %w", fname, err)
		}
		result = bytes.TrimSpace(data)
	default:
		return nil, ErrNoSecret
	}

	if len(result) < minimumSecretBytes {
		return nil, fmt.Errorf("%w, got %d bytes", ErrSecretTooShort, len(result))
	}

	return result, nil
}
