package lib

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/TecharoHQ/formguard"
	"github.com/TecharoHQ/formguard/lib/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := LoadConfigOrDefault("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Format != formguard.DefaultFormat {
		t.Errorf("wanted default format %q, got: %q", formguard.DefaultFormat, cfg.Format)
	}

	if cfg.MinWait != formguard.DefaultMinWait || cfg.MaxWait != formguard.DefaultMaxWait {
		t.Errorf("wrong default window: %s to %s", cfg.MinWait, cfg.MaxWait)
	}
}

func TestInvalidTokenFormat(t *testing.T) {
	if _, err := LoadConfigOrDefault("testdata/invalid-format.yaml"); !errors.Is(err, config.ErrUnknownTokenFormat) {
		t.Fatalf("wanted error %v but got %v", config.ErrUnknownTokenFormat, err)
	}
}

func TestMissingConfig(t *testing.T) {
	if _, err := LoadConfigOrDefault("testdata/does-not-exist.yaml"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wanted error %v but got %v", os.ErrNotExist, err)
	}
}

func TestGoodConfigs(t *testing.T) {
	finfos, err := os.ReadDir("config/testdata/good")
	if err != nil {
		t.Fatal(err)
	}

	for _, st := range finfos {
		t.Run(st.Name(), func(t *testing.T) {
			if _, err := LoadConfigOrDefault(filepath.Join("config", "testdata", "good", st.Name())); err != nil {
				t.Fatal(err)
			}
		})
	}
}
