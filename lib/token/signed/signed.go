// Package signed implements the signed-plaintext token format: the issuance
// time in clear text followed by an HMAC over that time and the binding.
// The binding itself never leaves the server, so decoding needs the claim of
// the current request.
package signed

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/formguard/lib/token"
)

const Format = "signed"

var (
	ErrTooShort     = errors.New("signed: token is shorter than its timestamp")
	ErrBadSignature = errors.New("signed: signature mismatch")
	ErrYearRange    = errors.New("signed: issuance year must be between 0 and 9999")
)

var encoding = base64.URLEncoding.Strict()

const timestampLen = len(token.TimestampFormat)

func init() {
	token.Register(Format, Factory{})
}

type Factory struct{}

func (Factory) Build(secret []byte) (token.Codec, error) {
	if len(secret) == 0 {
		return nil, token.ErrNoSecret
	}

	return &Impl{secret: secret}, nil
}

type Impl struct {
	secret []byte
}

func (i *Impl) Format() string { return Format }

// fields is the serialized binding covered by the signature. Field order is
// fixed by the struct so the encoding is deterministic. The values are bytes
// so identifiers that are not valid UTF-8 are signed as they are.
type fields struct {
	RemoteIP []byte `json:"remote_ip"`
	UniqueID []byte `json:"unique_id"`
}

func (i *Impl) sign(timestamp string, b token.Binding) ([]byte, error) {
	data, err := json.Marshal(fields{RemoteIP: []byte(b.RemoteAddress), UniqueID: []byte(b.UniqueID)})
	if err != nil {
		return nil, fmt.Errorf("signed: can't serialize binding: %w", err)
	}

	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(timestamp))
	mac.Write(data)
	return mac.Sum(nil), nil
}

func (i *Impl) Encode(tc token.Context) (string, error) {
	issuedAt := tc.IssuedAt.UTC()
	if year := issuedAt.Year(); year < 0 || year > 9999 {
		return "", fmt.Errorf("%w, got: %d", ErrYearRange, year)
	}

	timestamp := issuedAt.Format(token.TimestampFormat)

	sig, err := i.sign(timestamp, tc.Binding)
	if err != nil {
		return "", err
	}

	return encoding.EncodeToString(append([]byte(timestamp), sig...)), nil
}

func (i *Impl) Decode(tok string, claim token.Binding) (token.Context, error) {
	plain, err := encoding.DecodeString(tok)
	if err != nil {
		return token.Context{}, token.Malformed(err)
	}

	if len(plain) < timestampLen {
		return token.Context{}, token.Malformed(fmt.Errorf("%w: %d bytes", ErrTooShort, len(plain)))
	}

	timestamp, got := string(plain[:timestampLen]), plain[timestampLen:]

	issuedAt, err := time.ParseInLocation(token.TimestampFormat, timestamp, time.UTC)
	if err != nil {
		return token.Context{}, token.Malformed(err)
	}

	want, err := i.sign(timestamp, claim)
	if err != nil {
		return token.Context{}, token.Malformed(err)
	}

	if !hmac.Equal(want, got) {
		return token.Context{}, token.Malformed(ErrBadSignature)
	}

	return token.Context{Binding: claim, IssuedAt: issuedAt}, nil
}
