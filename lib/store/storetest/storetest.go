package storetest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/TecharoHQ/formguard/lib/store"
)

// Common runs the conformance suite every storage backend must pass.
func Common(t *testing.T, f store.Factory, config json.RawMessage) {
	t.Helper()

	if err := f.Valid(config); err != nil {
		t.Fatal(err)
	}

	s, err := f.Build(t.Context(), config)
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name string
		doer func(t *testing.T, s store.Interface) error
		err  error
	}{
		{
			name: "basic get set delete",
			doer: func(t *testing.T, s store.Interface) error {
				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", t.Name())
				}

				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 5*time.Minute); err != nil {
					return err
				}

				val, err := s.Get(t.Context(), t.Name())
				if errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to exist in store but it does not: %v", t.Name(), err)
				} else if err != nil {
					t.Error(err)
				}

				if !bytes.Equal(val, []byte(t.Name())) {
					t.Logf("want: %q", t.Name())
					t.Logf("got:  %q", string(val))
					t.Error("wrong value returned")
				}

				if err := s.Delete(t.Context(), t.Name()); err != nil {
					return err
				}

				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Error("wanted test to not exist in store but it exists anyways")
				}

				if err := s.Delete(t.Context(), t.Name()); err == nil {
					t.Errorf("key %q does not exist and Delete did not return non-nil", t.Name())
				}

				return nil
			},
		},
		{
			name: "overwrite replaces value",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte("first"), 5*time.Minute); err != nil {
					return err
				}

				if err := s.Set(t.Context(), t.Name(), []byte("second"), 5*time.Minute); err != nil {
					return err
				}

				val, err := s.Get(t.Context(), t.Name())
				if err != nil {
					return err
				}

				if string(val) != "second" {
					t.Errorf("wanted overwritten value %q, got: %q", "second", val)
				}

				return s.Delete(t.Context(), t.Name())
			},
		},
		{
			name: "thread document",
			doer: func(t *testing.T, s store.Interface) error {
				type comment struct {
					ID   string `json:"id"`
					Body string `json:"body"`
				}

				db := store.JSON[[]comment]{Underlying: s, Prefix: "thread:", Hash: true}
				want := []comment{{ID: "1", Body: "first!"}, {ID: "2", Body: "ünïcödé"}}

				if err := db.Set(t.Context(), t.Name()+"/with spaces and \x00", want, 5*time.Minute); err != nil {
					return err
				}

				got, err := db.Get(t.Context(), t.Name()+"/with spaces and \x00")
				if err != nil {
					return err
				}

				if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
					t.Logf("want: %+v", want)
					t.Logf("got:  %+v", got)
					t.Error("wrong thread returned")
				}

				return nil
			},
		},
		{
			name: "update creates and replaces",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Update(t.Context(), t.Name(), 5*time.Minute, func(current []byte) ([]byte, error) {
					if current != nil {
						t.Errorf("wanted no current value for a new key, got: %q", current)
					}
					return []byte("first"), nil
				}); err != nil {
					return err
				}

				if err := s.Update(t.Context(), t.Name(), 5*time.Minute, func(current []byte) ([]byte, error) {
					return append(current, " second"...), nil
				}); err != nil {
					return err
				}

				val, err := s.Get(t.Context(), t.Name())
				if err != nil {
					return err
				}

				if string(val) != "first second" {
					t.Errorf("wanted %q, got: %q", "first second", val)
				}

				return s.Delete(t.Context(), t.Name())
			},
		},
		{
			name: "failed update leaves value alone",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte("kept"), 5*time.Minute); err != nil {
					return err
				}

				errRefused := errors.New("refused")
				if err := s.Update(t.Context(), t.Name(), 5*time.Minute, func([]byte) ([]byte, error) {
					return nil, errRefused
				}); !errors.Is(err, errRefused) {
					t.Errorf("wanted %v, got: %v", errRefused, err)
				}

				val, err := s.Get(t.Context(), t.Name())
				if err != nil {
					return err
				}

				if string(val) != "kept" {
					t.Errorf("wanted %q, got: %q", "kept", val)
				}

				return nil
			},
		},
		{
			name: "concurrent appends",
			doer: func(t *testing.T, s store.Interface) error {
				ConcurrentAppends(t, s, s)
				return nil
			},
		},
		{
			name: "expires",
			doer: func(t *testing.T, s store.Interface) error {
				if err := s.Set(t.Context(), t.Name(), []byte(t.Name()), 150*time.Millisecond); err != nil {
					return err
				}

				//nosleep:bypass XXX(Xe): use Go's time faking thing in Go 1.25 when that is released.
				time.Sleep(155 * time.Millisecond)

				if _, err := s.Get(t.Context(), t.Name()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("wanted %s to not exist in store but it exists anyways", t.Name())
				}

				return nil
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.doer(t, s); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("wrong error")
			}
		})
	}
}

// ConcurrentAppends appends comments to one thread from many goroutines
// spread over the given handles, which should all reach the same backend,
// and fails the test if any comment is lost.
func ConcurrentAppends(t *testing.T, handles ...store.Interface) {
	t.Helper()

	const perHandle = 16
	key := "concurrent:" + t.Name()

	var wg sync.WaitGroup
	errs := make(chan error, perHandle*len(handles))

	for i, s := range handles {
		thread := store.JSON[[]string]{Underlying: s, Prefix: "thread:"}

		for j := range perHandle {
			wg.Add(1)
			go func() {
				defer wg.Done()
				comment := fmt.Sprintf("handle %d comment %d", i, j)

				if err := thread.Update(t.Context(), key, 5*time.Minute, func(comments []string) ([]string, error) {
					return append(comments, comment), nil
				}); err != nil {
					errs <- err
				}
			}()
		}
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("append failed: %v", err)
	}

	got, err := (&store.JSON[[]string]{Underlying: handles[0], Prefix: "thread:"}).Get(t.Context(), key)
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	for _, c := range got {
		if seen[c] {
			t.Errorf("comment %q was stored twice", c)
		}
		seen[c] = true
	}

	if want := perHandle * len(handles); len(seen) != want {
		t.Logf("want: %d comments", want)
		t.Logf("got:  %d comments", len(seen))
		t.Error("comments were lost")
	}
}
