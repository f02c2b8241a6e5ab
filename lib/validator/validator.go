// Package validator decides whether a decoded submission token is authentic,
// issued for the current request, and submitted within the allowed window.
package validator

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/TecharoHQ/formguard"
	"github.com/TecharoHQ/formguard/lib/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrBindingMismatch = errors.New("validator: token was issued for another binding")
	ErrNoIssuance      = errors.New("validator: token has no issuance time")
	ErrFromFuture      = errors.New("validator: token was issued in the future")
	ErrBadWindow       = errors.New("validator: minimum wait must be shorter than maximum wait")
)

var (
	verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formguard_verdicts",
		Help: "The total number of submission tokens validated, by outcome",
	}, []string{"format", "kind"})

	submissionDelay = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "formguard_submission_delay_seconds",
		Help:    "Time between a form being rendered and submitted with an authentic token",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 300, 900, 1800, 3600, 7200},
	}, []string{"format"})
)

// Validator holds the submission window. In a Validator built as a struct
// literal, a zero wait means the default. Validators from New use their window
// as given, so New(0, max) accepts submissions immediately.
type Validator struct {
	MinWait time.Duration
	MaxWait time.Duration

	explicit bool
}

// New creates a Validator, rejecting windows that can never be satisfied.
func New(minWait, maxWait time.Duration) (*Validator, error) {
	if minWait < 0 || maxWait <= 0 || minWait >= maxWait {
		return nil, fmt.Errorf("%w: min_wait=%s max_wait=%s", ErrBadWindow, minWait, maxWait)
	}

	return &Validator{MinWait: minWait, MaxWait: maxWait, explicit: true}, nil
}

func (v *Validator) minWait() time.Duration {
	if v == nil || (!v.explicit && v.MinWait == 0) {
		return formguard.DefaultMinWait
	}
	return v.MinWait
}

func (v *Validator) maxWait() time.Duration {
	if v == nil || v.MaxWait == 0 {
		return formguard.DefaultMaxWait
	}
	return v.MaxWait
}

// Check turns the result of decoding tok into a Verdict. decodeErr is the
// error returned by the codec, if any.
func (v *Validator) Check(tok string, tc token.Context, decodeErr error, claim token.Binding, now time.Time) Verdict {
	if decodeErr != nil {
		return Verdict{Kind: Invalid, Reason: decodeErr}
	}

	if !sameBinding(tc.Binding, claim) {
		return Verdict{Kind: Invalid, Reason: token.Malformed(ErrBindingMismatch)}
	}

	if tc.IssuedAt.IsZero() {
		return Verdict{Kind: Invalid, Reason: token.Malformed(ErrNoIssuance)}
	}

	elapsed := now.Sub(tc.IssuedAt)
	if elapsed < 0 {
		return Verdict{Kind: Invalid, Reason: token.Malformed(fmt.Errorf("%w: %s ahead", ErrFromFuture, -elapsed))}
	}

	if wait := v.minWait(); elapsed < wait {
		return Verdict{Kind: TooSoon, Remaining: wait - elapsed}
	}

	if elapsed > v.maxWait() {
		return Verdict{Kind: Expired}
	}

	return Verdict{Kind: Valid, Token: tok}
}

// Validate decodes tok with codec and checks it against claim at now.
func (v *Validator) Validate(codec token.Codec, tok string, claim token.Binding, now time.Time) Verdict {
	tc, err := codec.Decode(tok, claim)
	result := v.Check(tok, tc, err, claim, now)

	verdicts.WithLabelValues(codec.Format(), result.Kind.String()).Inc()
	if err == nil && result.Kind != Invalid {
		submissionDelay.WithLabelValues(codec.Format()).Observe(now.Sub(tc.IssuedAt).Seconds())
	}

	return result
}

func sameBinding(a, b token.Binding) bool {
	return subtle.ConstantTimeCompare([]byte(a.RemoteAddress), []byte(b.RemoteAddress))&
		subtle.ConstantTimeCompare([]byte(a.UniqueID), []byte(b.UniqueID)) == 1
}
