package token

import (
	"log/slog"
	"strconv"
	"time"
)

// TimestampFormat is the layout of timestamps rendered into tokens that carry
// the issuance time in plain text.
const TimestampFormat = "2006-01-02 15:04:05"

// Binding is what a request claims about itself: the address it came from
// and the identifier of the thing it is acting on, such as the id of the
// post being commented on.
type Binding struct {
	RemoteAddress string `json:"remoteAddress"` // Requester network address
	UniqueID      string `json:"uniqueID"`      // Caller-defined identifier
}

// IntID renders an integer identifier the way every codec expects it.
func IntID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func (b Binding) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("remote_address", b.RemoteAddress),
		slog.String("unique_id", b.UniqueID),
	)
}

// Context is everything a token is bound to.
type Context struct {
	Binding
	IssuedAt time.Time `json:"issuedAt"` // When the form was rendered, second precision
}

// New creates a Context issued at now. Issuance times are truncated to the
// second and kept in UTC.
func New(now time.Time, b Binding) Context {
	return Context{
		Binding:  b,
		IssuedAt: now.UTC().Truncate(time.Second),
	}
}
