package form

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/TecharoHQ/formguard/lib/localization"
	"github.com/TecharoHQ/formguard/lib/validator"
)

var (
	ErrMissingToken = errors.New("form: no security token submitted")
	ErrTooLong      = errors.New("form: security token is too long")
	ErrNoInitial    = errors.New("form: initial values map is nil")
)

// Message IDs shared with the localization bundle.
const (
	MessageInvalid = "invalid_token"
	MessageTooSoon = "too_soon"
	MessageExpired = "expired"
)

var englishMessages = map[string]string{
	MessageInvalid: "Invalid security token",
	MessageTooSoon: "Wait for another %.2f seconds before submitting this form",
	MessageExpired: "This form has expired. Reload the page to get a new one",
}

// NewError builds the rejection for a verdict that is not Valid.
func NewError(v validator.Verdict) *Error {
	e := &Error{
		Verdict:    v,
		StatusCode: http.StatusBadRequest,
	}

	switch v.Kind {
	case validator.TooSoon:
		e.MessageID = MessageTooSoon
		e.TemplateData = map[string]any{"Remaining": fmt.Sprintf("%.2f", v.RemainingSeconds())}
		e.PublicReason = fmt.Sprintf(englishMessages[MessageTooSoon], v.RemainingSeconds())
	case validator.Expired:
		e.MessageID = MessageExpired
		e.PublicReason = englishMessages[MessageExpired]
	default:
		e.MessageID = MessageInvalid
		e.PublicReason = englishMessages[MessageInvalid]
	}

	return e
}

// Error is a rejected submission. PublicReason is safe to show to users,
// Verdict.Reason is not.
type Error struct {
	Verdict      validator.Verdict
	MessageID    string
	TemplateData map[string]any
	PublicReason string
	StatusCode   int
}

func (e *Error) Error() string {
	if e.Verdict.Reason != nil {
		return fmt.Sprintf("form: submission rejected: %s: %v", e.PublicReason, e.Verdict.Reason)
	}
	return fmt.Sprintf("form: submission rejected: %s", e.PublicReason)
}

func (e *Error) Unwrap() error {
	return e.Verdict.Reason
}

// Message returns PublicReason in the language of sl.
func (e *Error) Message(sl *localization.SimpleLocalizer) string {
	if sl == nil {
		return e.PublicReason
	}
	return sl.TD(e.MessageID, e.TemplateData)
}
