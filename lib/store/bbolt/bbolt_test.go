package bbolt

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/TecharoHQ/formguard/lib/store"
	"github.com/TecharoHQ/formguard/lib/store/storetest"
	"go.etcd.io/bbolt"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func config(t *testing.T, path string) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(Config{
		Path:            path,
		CleanupInterval: &metav1.Duration{Duration: time.Minute},
	})
	if err != nil {
		t.Fatal(err)
	}

	return json.RawMessage(data)
}

func TestImpl(t *testing.T) {
	storetest.Common(t, Factory{}, config(t, filepath.Join(t.TempDir(), "db")))
}

func TestSharedDatabase(t *testing.T) {
	bdb, err := bbolt.Open(filepath.Join(t.TempDir(), "db"), 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bdb.Close() })

	storetest.ConcurrentAppends(t, &Store{bdb: bdb}, &Store{bdb: bdb})
}

func TestSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")

	ctx, cancel := context.WithCancel(t.Context())
	s, err := Factory{}.Build(ctx, config(t, path))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Set(ctx, "thread:16", []byte(`[{"body":"first!"}]`), time.Hour); err != nil {
		t.Fatal(err)
	}

	// the database is closed once the context is done, which releases the
	// file lock for the next Open
	cancel()

	s, err = Factory{}.Build(t.Context(), config(t, path))
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(t.Context(), "thread:16")
	if err != nil {
		t.Fatal(err)
	}

	if string(got) != `[{"body":"first!"}]` {
		t.Errorf("wrong thread after restart: %s", got)
	}
}

func TestCleanup(t *testing.T) {
	bdb, err := bbolt.Open(filepath.Join(t.TempDir(), "db"), 0600, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { bdb.Close() })

	s := &Store{bdb: bdb}

	for _, tt := range []struct {
		key    string
		expiry time.Duration
	}{
		{key: "thread:stale-1", expiry: -time.Minute},
		{key: "thread:stale-2", expiry: -time.Second},
		{key: "thread:live", expiry: time.Hour},
	} {
		if err := s.Set(t.Context(), tt.key, []byte("[]"), tt.expiry); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.cleanup(t.Context()); err != nil {
		t.Fatal(err)
	}

	var buckets []string
	if err := bdb.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			buckets = append(buckets, string(name))
			return nil
		})
	}); err != nil {
		t.Fatal(err)
	}

	if len(buckets) != 1 || buckets[0] != "thread:live" {
		t.Errorf("wanted only the live thread to survive cleanup, got: %v", buckets)
	}

	if _, err := s.Get(t.Context(), "thread:stale-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("wanted %v, got: %v", store.ErrNotFound, err)
	}
}
