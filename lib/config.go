package lib

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/TecharoHQ/formguard/data"
	"github.com/TecharoHQ/formguard/lib/config"
)

// LoadConfigOrDefault loads fname, or the built-in configuration when fname
// is empty.
func LoadConfigOrDefault(fname string) (*config.Config, error) {
	var fin io.ReadCloser
	var err error

	if fname != "" {
		fin, err = os.Open(fname)
		if err != nil {
			return nil, fmt.Errorf("can't parse config file %s: %w", fname, err)
		}
	} else {
		fname = "(data)/formguard.yaml"
		fin, err = data.DefaultConfig.Open("formguard.yaml")
		if err != nil {
			return nil, fmt.Errorf("[unexpected] can't parse builtin config file %s: %w", fname, err)
		}
	}

	defer func(fin io.ReadCloser) {
		err := fin.Close()
		if err != nil {
			slog.Error("failed to close config file", "file", fname, "err", err)
		}
	}(fin)

	cfg, err := config.Load(fin, fname)
	if err != nil {
		return nil, fmt.Errorf("can't parse config file %s: %w", fname, err)
	}

	return cfg, nil
}
