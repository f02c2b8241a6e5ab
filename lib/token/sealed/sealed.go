// Package sealed implements the encrypted token format. The whole context is
// serialized and sealed with XChaCha20-Poly1305, so the binding is recovered
// from the token instead of being trusted from the request.
package sealed

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/TecharoHQ/formguard/lib/token"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const Format = "sealed"

var (
	ErrTooShort  = errors.New("sealed: token is shorter than its nonce")
	ErrNoIssueAt = errors.New("sealed: record has no issuance time")
)

var encoding = base64.RawURLEncoding.Strict()

// additionalData ties ciphertexts to this format so a key shared with other
// formats can't be used to splice records between them.
var additionalData = []byte("formguard/sealed/v1")

func init() {
	token.Register(Format, Factory{})
}

type Factory struct{}

func (Factory) Build(secret []byte) (token.Codec, error) {
	if len(secret) == 0 {
		return nil, token.ErrNoSecret
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, additionalData), key); err != nil {
		return nil, fmt.Errorf("sealed: can't derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("sealed: can't create cipher: %w", err)
	}

	return &Impl{aead: aead}, nil
}

type Impl struct {
	aead cipher.AEAD
}

func (i *Impl) Format() string { return Format }

// record carries the binding as bytes so it survives serialization
// unchanged even when it is not valid UTF-8.
type record struct {
	IssuedAt      int64  `json:"iat"`
	RemoteAddress []byte `json:"ip"`
	UniqueID      []byte `json:"uid"`
}

func (i *Impl) Encode(tc token.Context) (string, error) {
	plain, err := json.Marshal(record{
		IssuedAt:      tc.IssuedAt.Unix(),
		RemoteAddress: []byte(tc.RemoteAddress),
		UniqueID:      []byte(tc.UniqueID),
	})
	if err != nil {
		return "", fmt.Errorf("sealed: can't serialize context: %w", err)
	}

	nonce := make([]byte, i.aead.NonceSize(), i.aead.NonceSize()+len(plain)+i.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("sealed: can't read nonce: %w", err)
	}

	return encoding.EncodeToString(i.aead.Seal(nonce, nonce, plain, additionalData)), nil
}

func (i *Impl) Decode(tok string, _ token.Binding) (token.Context, error) {
	data, err := encoding.DecodeString(tok)
	if err != nil {
		return token.Context{}, token.Malformed(err)
	}

	if len(data) < i.aead.NonceSize() {
		return token.Context{}, token.Malformed(fmt.Errorf("%w: %d bytes", ErrTooShort, len(data)))
	}

	nonce, ciphertext := data[:i.aead.NonceSize()], data[i.aead.NonceSize():]
	plain, err := i.aead.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return token.Context{}, token.Malformed(err)
	}

	dec := json.NewDecoder(bytes.NewReader(plain))
	dec.DisallowUnknownFields()

	var rec record
	if err := dec.Decode(&rec); err != nil {
		return token.Context{}, token.Malformed(err)
	}

	if rec.IssuedAt == 0 {
		return token.Context{}, token.Malformed(ErrNoIssueAt)
	}

	return token.Context{
		Binding: token.Binding{
			RemoteAddress: string(rec.RemoteAddress),
			UniqueID:      string(rec.UniqueID),
		},
		IssuedAt: time.Unix(rec.IssuedAt, 0).UTC(),
	}, nil
}
