package validator

import (
	"log/slog"
	"math"
	"time"
)

// Kind is the outcome of validating a submission token.
type Kind int

const (
	Valid Kind = iota
	Invalid
	TooSoon
	Expired
)

func (k Kind) String() string {
	switch k {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case TooSoon:
		return "too_soon"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Verdict is the result of one validation. Only the field matching Kind is
// meaningful: Token for Valid, Reason for Invalid, Remaining for TooSoon.
type Verdict struct {
	Kind      Kind
	Token     string        // accepted token
	Reason    error         // why the token was rejected, for logs only
	Remaining time.Duration // how long the submitter still has to wait
}

// OK reports whether the token was accepted.
func (v Verdict) OK() bool {
	return v.Kind == Valid
}

// RemainingSeconds returns Remaining in seconds rounded to two decimals, the
// precision users are shown.
func (v Verdict) RemainingSeconds() float64 {
	return math.Round(v.Remaining.Seconds()*100) / 100
}

func (v Verdict) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("kind", v.Kind.String())}

	switch v.Kind {
	case Invalid:
		if v.Reason != nil {
			attrs = append(attrs, slog.String("reason", v.Reason.Error()))
		}
	case TooSoon:
		attrs = append(attrs, slog.Duration("remaining", v.Remaining))
	}

	return slog.GroupValue(attrs...)
}
