package sealed

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/TecharoHQ/formguard/lib/token"
	"github.com/TecharoHQ/formguard/lib/token/tokentest"
)

func TestImpl(t *testing.T) {
	tokentest.Common(t, Factory{})
}

func TestRecoversBinding(t *testing.T) {
	codec, err := Factory{}.Build([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	tc := tokentest.New(t)
	tok, err := codec.Encode(tc)
	if err != nil {
		t.Fatal(err)
	}

	got, err := codec.Decode(tok, token.Binding{})
	if err != nil {
		t.Fatal(err)
	}

	if got.Binding != tc.Binding {
		t.Errorf("wanted binding %+v, got: %+v", tc.Binding, got.Binding)
	}
}

func TestOpaque(t *testing.T) {
	codec, err := Factory{}.Build([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	tc := tokentest.New(t)

	a, err := codec.Encode(tc)
	if err != nil {
		t.Fatal(err)
	}

	b, err := codec.Encode(tc)
	if err != nil {
		t.Fatal(err)
	}

	if a == b {
		t.Error("two encodings of the same context are identical, nonce is not random")
	}

	raw, err := base64.RawURLEncoding.DecodeString(a)
	if err != nil {
		t.Fatal(err)
	}

	for _, leak := range []string{"1.2.3.4", "1991", `"uid"`} {
		if bytes.Contains(raw, []byte(leak)) {
			t.Errorf("token leaks %q in clear text", leak)
		}
	}
}

func TestTooShort(t *testing.T) {
	codec, err := Factory{}.Build([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = codec.Decode(base64.RawURLEncoding.EncodeToString([]byte("short")), token.Binding{})
	if !errors.Is(err, ErrTooShort) {
		t.Errorf("wanted %v, got: %v", ErrTooShort, err)
	}
}
