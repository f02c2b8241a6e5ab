package signed

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/TecharoHQ/formguard/lib/token"
	"github.com/TecharoHQ/formguard/lib/token/tokentest"
)

func TestImpl(t *testing.T) {
	tokentest.Common(t, Factory{})
}

func TestTimestampIsPlaintext(t *testing.T) {
	codec, err := Factory{}.Build([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	tok, err := codec.Encode(tokentest.New(t))
	if err != nil {
		t.Fatal(err)
	}

	plain, err := base64.URLEncoding.DecodeString(tok)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(string(plain), "1991-10-05 18:53:00") {
		t.Errorf("token does not start with the issuance time: %q", plain[:timestampLen])
	}

	// 19 bytes of timestamp + a SHA-256 HMAC
	if len(plain) != timestampLen+32 {
		t.Errorf("wanted %d bytes, got: %d", timestampLen+32, len(plain))
	}
}

func TestDecodeErrors(t *testing.T) {
	codec, err := Factory{}.Build([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	claim := tokentest.New(t).Binding
	enc := base64.URLEncoding.EncodeToString

	for _, tt := range []struct {
		name string
		tok  string
		err  error
	}{
		{
			name: "too short",
			tok:  enc([]byte("1991-10-05")),
			err:  ErrTooShort,
		},
		{
			name: "no signature",
			tok:  enc([]byte("1991-10-05 18:53:00")),
			err:  ErrBadSignature,
		},
		{
			name: "bad timestamp",
			tok:  enc([]byte("yesterday afternoon and then some")),
			err:  token.ErrMalformed,
		},
		{
			name: "not base64",
			tok:  "wrong magic",
			err:  token.ErrMalformed,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.tok, claim)
			if !errors.Is(err, tt.err) {
				t.Errorf("wanted %v, got: %v", tt.err, err)
			}
			if !errors.Is(err, token.ErrMalformed) {
				t.Errorf("error %v does not wrap %v", err, token.ErrMalformed)
			}
		})
	}
}

func TestDeterministic(t *testing.T) {
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

	if a != b {
		t.Errorf("encoding the same context twice gave %q and %q", a, b)
	}
}

func TestYearOutOfRange(t *testing.T) {
	codec, err := Factory{}.Build([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	binding := tokentest.New(t).Binding

	for _, tt := range []struct {
		name string
		at   time.Time
		err  error
	}{
		{name: "year 9999", at: time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)},
		{name: "year 0", at: time.Date(0, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "year 10000", at: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC), err: ErrYearRange},
		{name: "year -1", at: time.Date(-1, 1, 1, 0, 0, 0, 0, time.UTC), err: ErrYearRange},
	} {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := codec.Encode(token.New(tt.at, binding))
			if !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Fatal("wrong error")
			}
			if err != nil {
				return
			}

			got, err := codec.Decode(tok, binding)
			if err != nil {
				t.Fatalf("token issued in range does not decode: %v", err)
			}
			if !got.IssuedAt.Equal(tt.at) {
				t.Errorf("wanted issuance time %s, got: %s", tt.at, got.IssuedAt)
			}
		})
	}
}
