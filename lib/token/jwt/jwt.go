// Package jwt implements a token format backed by HS512-signed JSON Web
// Tokens. The binding travels in the claims and is recovered on decode.
package jwt

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/formguard/lib/token"
	"github.com/golang-jwt/jwt/v5"
)

const Format = "jwt"

var (
	ErrMissingClaim = errors.New("jwt: missing claim")
	ErrBadClaim     = errors.New("jwt: claim is not valid base64")
)

// Binding claims hold the raw bytes in base64 because JSON strings can't
// carry identifiers that are not valid UTF-8.
var claimEncoding = base64.RawURLEncoding.Strict()

func init() {
	token.Register(Format, Factory{})
}

type Factory struct{}

func (Factory) Build(secret []byte) (token.Codec, error) {
	if len(secret) == 0 {
		return nil, token.ErrNoSecret
	}

	return &Impl{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
			jwt.WithStrictDecoding(),
			// timing is the validator's job
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

type Impl struct {
	secret []byte
	parser *jwt.Parser
}

func (i *Impl) Format() string { return Format }

func (i *Impl) Encode(tc token.Context) (string, error) {
	result, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"iat": tc.IssuedAt.Unix(),
		"ip":  claimEncoding.EncodeToString([]byte(tc.RemoteAddress)),
		"uid": claimEncoding.EncodeToString([]byte(tc.UniqueID)),
	}).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: can't sign token: %w", err)
	}

	return result, nil
}

func (i *Impl) Decode(tok string, _ token.Binding) (token.Context, error) {
	claims := jwt.MapClaims{}
	if _, err := i.parser.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}); err != nil {
		return token.Context{}, token.Malformed(err)
	}

	iat, err := claims.GetIssuedAt()
	if err != nil {
		return token.Context{}, token.Malformed(err)
	}
	if iat == nil {
		return token.Context{}, token.Malformed(fmt.Errorf("%w: iat", ErrMissingClaim))
	}

	ip, err := bindingClaim(claims, "ip")
	if err != nil {
		return token.Context{}, token.Malformed(err)
	}

	uid, err := bindingClaim(claims, "uid")
	if err != nil {
		return token.Context{}, token.Malformed(err)
	}

	return token.Context{
		Binding: token.Binding{
			RemoteAddress: ip,
			UniqueID:      uid,
		},
		IssuedAt: iat.Time.UTC().Truncate(time.Second),
	}, nil
}

func bindingClaim(claims jwt.MapClaims, name string) (string, error) {
	encoded, ok := claims[name].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingClaim, name)
	}

	raw, err := claimEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrBadClaim, name, err)
	}

	return string(raw), nil
}
