package bbolt

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/TecharoHQ/formguard/lib/store"
	"go.etcd.io/bbolt"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestFactoryValid(t *testing.T) {
	dir := t.TempDir()

	for _, tt := range []struct {
		name string
		data string
		err  error
	}{
		{name: "path", data: `{"path": "` + filepath.Join(dir, "db") + `"}`},
		{name: "all fields", data: `{"path": "` + filepath.Join(dir, "db") + `", "cleanup_interval": "1m", "open_timeout": "5s"}`},
		{name: "not json", data: `}`, err: store.ErrBadConfig},
		{name: "missing path", data: `{}`, err: ErrMissingPath},
		{name: "unwritable path", data: `{"path": "/this/path/does/not/exist/db"}`, err: ErrCantWriteToPath},
		{name: "negative cleanup interval", data: `{"path": "` + filepath.Join(dir, "db") + `", "cleanup_interval": "-1s"}`, err: ErrBadCleanupInterval},
		{name: "negative open timeout", data: `{"path": "` + filepath.Join(dir, "db") + `", "open_timeout": "-1s"}`, err: ErrBadOpenTimeout},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := (Factory{}).Valid(json.RawMessage(tt.data)); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("wrong error")
			}
		})
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("validation left files behind: %v", entries)
	}
}

func TestOpenTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")

	held, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { held.Close() })

	data, err := json.Marshal(Config{
		Path:        path,
		OpenTimeout: &metav1.Duration{Duration: 50 * time.Millisecond},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := (Factory{}).Build(t.Context(), json.RawMessage(data)); !errors.Is(err, bbolt.ErrTimeout) {
		t.Errorf("wanted %v while another handle holds the lock, got: %v", bbolt.ErrTimeout, err)
	}
}
