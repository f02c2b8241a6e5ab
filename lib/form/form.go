// Package form binds submission tokens to a form field: it fills in a fresh
// token when a form is rendered and validates it when the form comes back.
package form

import (
	"fmt"
	"net/url"

	"github.com/TecharoHQ/formguard"
	"github.com/TecharoHQ/formguard/internal/clock"
	"github.com/TecharoHQ/formguard/lib/token"
	"github.com/TecharoHQ/formguard/lib/validator"
)

// Field is the hidden token field of a form. It is safe for concurrent use.
type Field struct {
	Name      string
	Codec     token.Codec
	Validator *validator.Validator
	Clock     clock.Clock
}

// New creates a Field named formguard.FieldName.
func New(codec token.Codec, v *validator.Validator, clk clock.Clock) *Field {
	return &Field{
		Name:      formguard.FieldName,
		Codec:     codec,
		Validator: v,
		Clock:     clock.OrReal(clk),
	}
}

func (f *Field) name() string {
	if f.Name == "" {
		return formguard.FieldName
	}
	return f.Name
}

// Issue encodes a token for claim issued now.
func (f *Field) Issue(claim token.Binding) (string, error) {
	tok, err := f.Codec.Encode(token.New(clock.OrReal(f.Clock).Now(), claim))
	if err != nil {
		return "", fmt.Errorf("form: can't issue token: %w", err)
	}

	token.TokensIssued.WithLabelValues(f.Codec.Format()).Inc()
	return tok, nil
}

// Initialize sets the default value of the token field in initial unless
// the submitted data already carries a token. A submitted token is never
// replaced, it is what Validate will look at.
func (f *Field) Initialize(claim token.Binding, submitted url.Values, initial map[string]string) error {
	if submitted.Get(f.name()) != "" {
		return nil
	}

	if initial == nil {
		return ErrNoInitial
	}

	tok, err := f.Issue(claim)
	if err != nil {
		return err
	}

	initial[f.name()] = tok
	return nil
}

// Validate checks the submitted token against claim. It returns the
// accepted token or an *Error.
func (f *Field) Validate(submitted url.Values, claim token.Binding) (string, error) {
	tok := submitted.Get(f.name())

	switch {
	case tok == "":
		return "", NewError(validator.Verdict{Kind: validator.Invalid, Reason: token.Malformed(ErrMissingToken)})
	case len(tok) > formguard.MaxTokenLength:
		return "", NewError(validator.Verdict{Kind: validator.Invalid, Reason: token.Malformed(fmt.Errorf("%w: %d characters", ErrTooLong, len(tok)))})
	}

	verdict := f.Validator.Validate(f.Codec, tok, claim, clock.OrReal(f.Clock).Now())
	if !verdict.OK() {
		return "", NewError(verdict)
	}

	return verdict.Token, nil
}
