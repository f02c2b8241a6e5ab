package internal

import (
	"bytes"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
)

var contextCanceled = []byte("context canceled")

// InitSlog makes a JSON logger on stderr the process default.
func InitSlog(level string) {
	slog.SetDefault(NewLogger(os.Stderr, level))
}

// NewLogger returns a JSON logger writing to w. Level names follow
// slog.Level's text form ("debug", "WARN", "info+2"); anything else logs a
// warning and uses info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(level))
	if err != nil {
		lvl = slog.LevelInfo
	}

	lg := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     lvl,
	}))

	if err != nil {
		lg.Warn("invalid log level, using info", "level", level, "err", err)
	}

	return lg
}

// GetRequestLogger returns a logger annotated with the request details that
// matter when debugging a rejected submission.
func GetRequestLogger(r *http.Request) *slog.Logger {
	return slog.With(
		"method", r.Method,
		"path", r.URL.Path,
		"user_agent", r.UserAgent(),
		"accept_language", r.Header.Get("Accept-Language"),
		"x-forwarded-for", r.Header.Get("X-Forwarded-For"),
		"x-real-ip", r.Header.Get("X-Real-Ip"),
	)
}

// ErrorLogFilter drops http.Server error lines caused by clients that went
// away and hands everything else to Unwrap.
type ErrorLogFilter struct {
	Unwrap *log.Logger
}

func (elf *ErrorLogFilter) Write(p []byte) (int, error) {
	if elf.Unwrap == nil || bytes.Contains(p, contextCanceled) {
		return len(p), nil
	}

	if _, err := elf.Unwrap.Writer().Write(p); err != nil {
		return 0, err
	}

	return len(p), nil
}

// GetFilteredHTTPLogger returns an http.Server ErrorLog that reports through
// the default slog logger at warn level.
func GetFilteredHTTPLogger() *log.Logger {
	return log.New(&ErrorLogFilter{Unwrap: slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn)}, "", 0)
}
