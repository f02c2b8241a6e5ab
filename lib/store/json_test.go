package store_test

import (
	"errors"
	"testing"
	"time"

	"github.com/TecharoHQ/formguard/internal"
	"github.com/TecharoHQ/formguard/lib/store"
	"github.com/TecharoHQ/formguard/lib/store/memory"
)

type comment struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

func TestJSON(t *testing.T) {
	st := memory.New(t.Context())
	threads := store.JSON[[]comment]{Underlying: st, Prefix: "thread:"}

	want := []comment{{ID: "1", Body: "first!"}}
	if err := threads.Set(t.Context(), "16", want, time.Minute); err != nil {
		t.Fatal(err)
	}

	raw, err := st.Get(t.Context(), "thread:16")
	if err != nil {
		t.Fatalf("document was not stored under its prefixed key: %v", err)
	}
	if string(raw) != `[{"id":"1","body":"first!"}]` {
		t.Errorf("unexpected document: %s", raw)
	}

	got, err := threads.Get(t.Context(), "16")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("wanted %+v, got: %+v", want, got)
	}

	if err := threads.Delete(t.Context(), "16"); err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name  string
		setup func() error
		err   error
	}{
		{
			name:  "deleted",
			setup: func() error { return nil },
			err:   store.ErrNotFound,
		},
		{
			name:  "corrupt document",
			setup: func() error { return st.Set(t.Context(), "thread:16", []byte("}"), time.Minute) },
			err:   store.ErrCantDecode,
		},
		{
			name:  "wrong shape",
			setup: func() error { return st.Set(t.Context(), "thread:16", []byte(`{"id":"1"}`), time.Minute) },
			err:   store.ErrCantDecode,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.setup(); err != nil {
				t.Fatal(err)
			}

			if _, err := threads.Get(t.Context(), "16"); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("wrong error")
			}
		})
	}
}

func TestJSONUpdate(t *testing.T) {
	st := memory.New(t.Context())
	threads := store.JSON[[]comment]{Underlying: st, Prefix: "thread:", Hash: true}

	for _, body := range []string{"first!", "second"} {
		if err := threads.Update(t.Context(), "16", time.Minute, func(comments []comment) ([]comment, error) {
			return append(comments, comment{ID: body, Body: body}), nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := threads.Get(t.Context(), "16")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Body != "first!" || got[1].Body != "second" {
		t.Errorf("wrong thread after two appends: %+v", got)
	}

	// a thread that no longer decodes is reported, not overwritten
	if err := st.Set(t.Context(), "thread:"+internal.FastHash("17"), []byte("}"), time.Minute); err != nil {
		t.Fatal(err)
	}

	called := false
	err = threads.Update(t.Context(), "17", time.Minute, func(comments []comment) ([]comment, error) {
		called = true
		return comments, nil
	})
	if !errors.Is(err, store.ErrCantDecode) {
		t.Errorf("wanted %v, got: %v", store.ErrCantDecode, err)
	}
	if called {
		t.Error("update function ran on a corrupt document")
	}
}
