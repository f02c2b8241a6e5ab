// Package tokentest holds the conformance suite every token.Codec must pass.
package tokentest

import (
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/TecharoHQ/formguard/lib/token"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

// LoadedAt is the issuance time used by the suite.
var LoadedAt = time.Date(1991, 10, 5, 18, 53, 0, 0, time.UTC)

// New returns the context the suite issues tokens for.
func New(t *testing.T) token.Context {
	t.Helper()

	return token.New(LoadedAt, token.Binding{
		RemoteAddress: "1.2.3.4",
		UniqueID:      token.IntID(16),
	})
}

// Tamper replaces the character at i with a different character of the
// URL-safe base64 alphabet.
func Tamper(tok string, i int) string {
	b := []byte(tok)
	for _, c := range []byte(alphabet) {
		if c != b[i] {
			b[i] = c
			break
		}
	}
	return string(b)
}

// Common runs the conformance suite against f.
func Common(t *testing.T, f token.Factory) {
	t.Helper()

	if _, err := f.Build(nil); !errors.Is(err, token.ErrNoSecret) {
		t.Errorf("wanted %v when building without a secret, got: %v", token.ErrNoSecret, err)
	}

	codec, err := f.Build([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	tc := New(t)
	tok, err := codec.Encode(tc)
	if err != nil {
		t.Fatal(err)
	}

	for _, tt := range []struct {
		name string
		doer func(t *testing.T) error
		err  error
	}{
		{
			name: "round trip",
			doer: func(t *testing.T) error {
				got, err := codec.Decode(tok, tc.Binding)
				if err != nil {
					return err
				}

				if got.Binding != tc.Binding || !got.IssuedAt.Equal(tc.IssuedAt) {
					t.Logf("want: %+v", tc)
					t.Logf("got:  %+v", got)
					t.Error("decoded context does not match")
				}

				return nil
			},
		},
		{
			name: "opaque binding survives byte for byte",
			doer: func(t *testing.T) error {
				opaque := token.New(LoadedAt, token.Binding{
					RemoteAddress: "\xfe\x80::1",
					UniqueID:      "post-\xff\xfe",
				})

				enc, err := codec.Encode(opaque)
				if err != nil {
					return err
				}

				got, err := codec.Decode(enc, opaque.Binding)
				if err != nil {
					return err
				}

				if got.Binding != opaque.Binding {
					t.Logf("want: %q", opaque.UniqueID)
					t.Logf("got:  %q", got.UniqueID)
					t.Error("binding was altered in transit")
				}

				// the same id with its invalid bytes replaced by U+FFFD
				return checkBinding(t, codec, enc, token.Binding{
					RemoteAddress: opaque.RemoteAddress,
					UniqueID:      "post-\uFFFD\uFFFD",
				})
			},
		},
		{
			name: "url safe",
			doer: func(t *testing.T) error {
				for _, c := range tok {
					switch {
					case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
					case c == '-', c == '_', c == '=', c == '.':
					default:
						t.Errorf("token %q contains %q which is not URL-safe", tok, c)
					}
				}
				return nil
			},
		},
		{
			name: "sub-second issuance is truncated",
			doer: func(t *testing.T) error {
				frac := token.Context{Binding: tc.Binding, IssuedAt: LoadedAt.Add(750 * time.Millisecond)}
				enc, err := codec.Encode(frac)
				if err != nil {
					return err
				}

				got, err := codec.Decode(enc, tc.Binding)
				if err != nil {
					return err
				}

				if !got.IssuedAt.Equal(LoadedAt) {
					t.Errorf("wanted issuance time %s, got: %s", LoadedAt, got.IssuedAt)
				}
				return nil
			},
		},
		{
			name: "tampered at every position",
			doer: func(t *testing.T) error {
				for i := range len(tok) {
					if tok[i] == '.' || tok[i] == '=' {
						continue
					}

					if _, err := codec.Decode(Tamper(tok, i), tc.Binding); !errors.Is(err, token.ErrMalformed) {
						t.Errorf("position %d: wanted %v, got: %v", i, token.ErrMalformed, err)
					}
				}
				return nil
			},
		},
		{
			name: "wrong remote address",
			doer: func(t *testing.T) error {
				return checkBinding(t, codec, tok, token.Binding{RemoteAddress: "1.2.3.5", UniqueID: tc.UniqueID})
			},
		},
		{
			name: "wrong unique id",
			doer: func(t *testing.T) error {
				return checkBinding(t, codec, tok, token.Binding{RemoteAddress: tc.RemoteAddress, UniqueID: token.IntID(17)})
			},
		},
		{
			name: "garbage",
			doer: func(t *testing.T) error {
				for _, garbage := range []string{
					"",
					"wrong magic",
					base64.URLEncoding.EncodeToString([]byte("wrong magic")),
					base64.URLEncoding.EncodeToString([]byte("1991-10-05 18:53:00")),
					"....",
				} {
					if _, err := codec.Decode(garbage, tc.Binding); !errors.Is(err, token.ErrMalformed) {
						t.Errorf("%q: wanted %v, got: %v", garbage, token.ErrMalformed, err)
					}
				}
				return nil
			},
		},
		{
			name: "other secret",
			doer: func(t *testing.T) error {
				other, err := f.Build([]byte("hunter2"))
				if err != nil {
					return err
				}

				_, err = other.Decode(tok, tc.Binding)
				return err
			},
			err: token.ErrMalformed,
		},
		{
			name: "concurrent use",
			doer: func(t *testing.T) error {
				var wg sync.WaitGroup
				errs := make(chan error, 16)

				for range 16 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						enc, err := codec.Encode(tc)
						if err != nil {
							errs <- err
							return
						}
						if _, err := codec.Decode(enc, tc.Binding); err != nil {
							errs <- err
						}
					}()
				}

				wg.Wait()
				close(errs)

				return errors.Join(collect(errs)...)
			},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.doer(t); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("wrong error")
			}
		})
	}
}

// checkBinding asserts that tok can't be passed off as issued for claim:
// either decoding fails, or the recovered binding differs from the claim so
// the validator rejects it.
func checkBinding(t *testing.T, codec token.Codec, tok string, claim token.Binding) error {
	t.Helper()

	got, err := codec.Decode(tok, claim)
	if err != nil {
		if !errors.Is(err, token.ErrMalformed) {
			return err
		}
		return nil
	}

	if got.Binding == claim {
		t.Errorf("token decoded as bound to %+v", claim)
	}

	return nil
}

func collect(errs <-chan error) []error {
	var result []error
	for err := range errs {
		result = append(result, err)
	}
	return result
}
