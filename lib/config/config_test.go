package config_test

import (
	"errors"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TecharoHQ/formguard"
	"github.com/TecharoHQ/formguard/lib/config"
	"github.com/TecharoHQ/formguard/lib/token"
	"github.com/TecharoHQ/formguard/lib/validator"
)

func load(t *testing.T, fname string) (*config.Config, error) {
	t.Helper()

	fin, err := os.Open(fname)
	if err != nil {
		t.Fatal(err)
	}
	defer fin.Close()

	return config.Load(fin, fname)
}

func TestGoodConfigs(t *testing.T) {
	finfos, err := os.ReadDir("testdata/good")
	if err != nil {
		t.Fatal(err)
	}

	for _, st := range finfos {
		t.Run(st.Name(), func(t *testing.T) {
			if _, err := load(t, filepath.Join("testdata", "good", st.Name())); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestBadConfigs(t *testing.T) {
	finfos, err := os.ReadDir("testdata/bad")
	if err != nil {
		t.Fatal(err)
	}

	for _, st := range finfos {
		t.Run(st.Name(), func(t *testing.T) {
			if _, err := load(t, filepath.Join("testdata", "bad", st.Name())); err == nil {
				t.Fatal("config loaded but it should not have")
			} else {
				t.Log(err)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	c, err := config.Load(strings.NewReader("{}"), "(inline)")
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name string
		got  any
		want any
	}{
		{name: "format", got: c.Format, want: formguard.DefaultFormat},
		{name: "min wait", got: c.MinWait, want: formguard.DefaultMinWait},
		{name: "max wait", got: c.MaxWait, want: formguard.DefaultMaxWait},
		{name: "store", got: c.Store.Backend, want: "memory"},
		{name: "comment ttl", got: c.CommentTTL, want: config.DefaultCommentTTL},
		{name: "comment max length", got: c.CommentMaxLength, want: config.DefaultCommentMaxLength},
		{name: "rejected status", got: c.StatusCodes.Rejected, want: http.StatusBadRequest},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("wanted %v, got: %v", tt.want, tt.got)
			}
		})
	}
}

func TestAllFields(t *testing.T) {
	c, err := load(t, filepath.Join("testdata", "good", "all-fields.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if c.Format != "signed" {
		t.Errorf("wanted format signed, got: %s", c.Format)
	}

	if c.MinWait != 3*time.Second || c.MaxWait != 30*time.Minute {
		t.Errorf("wrong window: %s to %s", c.MinWait, c.MaxWait)
	}

	if c.CommentTTL != 24*time.Hour || c.CommentMaxLength != 2000 {
		t.Errorf("wrong comment settings: ttl=%s max_length=%d", c.CommentTTL, c.CommentMaxLength)
	}

	if len(c.TrustedProxies) != 3 || c.TrustedProxies[2] != netip.MustParsePrefix("fd00::/8") {
		t.Errorf("wrong trusted proxies: %v", c.TrustedProxies)
	}

	if c.StatusCodes.Rejected != http.StatusUnprocessableEntity {
		t.Errorf("wanted rejected status %d, got: %d", http.StatusUnprocessableEntity, c.StatusCodes.Rejected)
	}
}

func TestZeroMinWait(t *testing.T) {
	c, err := load(t, filepath.Join("testdata", "good", "zero-min-wait.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if c.MinWait != 0 {
		t.Fatalf("wanted min_wait 0s, got: %s", c.MinWait)
	}

	v, err := validator.New(c.MinWait, c.MaxWait)
	if err != nil {
		t.Fatal(err)
	}

	issued := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	tc := token.New(issued, token.Binding{RemoteAddress: "1.2.3.4", UniqueID: "16"})

	if got := v.Check("tok", tc, nil, tc.Binding, issued.Add(time.Second)); got.Kind != validator.Valid {
		t.Logf("want: %s", validator.Valid)
		t.Logf("got:  %s (remaining %s)", got.Kind, got.Remaining)
		t.Error("configured min_wait of 0s was not honored")
	}
}

func TestTokenValid(t *testing.T) {
	for _, tt := range []struct {
		name string
		file string
		err  error
	}{
		{name: "unknown format", file: "unknown-format.yaml", err: config.ErrUnknownTokenFormat},
		{name: "inverted window", file: "inverted-window.yaml", err: config.ErrWaitWindowInverted},
		{name: "negative wait", file: "negative-wait.yaml", err: config.ErrWaitNotPositive},
		{name: "short ttl", file: "short-ttl.yaml", err: config.ErrCommentTTLTooShort},
		{name: "huge comments", file: "huge-comments.yaml", err: config.ErrMaxLengthNotValid},
		{name: "bad cidr", file: "bad-cidr.yaml", err: config.ErrInvalidCIDR},
		{name: "status code", file: "status-code.yaml", err: config.ErrStatusCodeNotValid},
		{name: "unknown store", file: "unknown-store.yaml", err: config.ErrUnknownStoreBackend},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, filepath.Join("testdata", "bad", tt.file))
			if !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("wrong error")
			}
		})
	}
}
