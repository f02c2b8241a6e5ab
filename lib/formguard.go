package lib

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/TecharoHQ/formguard"
	"github.com/TecharoHQ/formguard/internal/clock"
	"github.com/TecharoHQ/formguard/lib/config"
	"github.com/TecharoHQ/formguard/lib/form"
	"github.com/TecharoHQ/formguard/lib/store"
	"github.com/TecharoHQ/formguard/lib/token"
	"github.com/TecharoHQ/formguard/lib/validator"
)

var (
	ErrNoConfig = errors.New("lib: no configuration")

	commentsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "formguard_comments_stored",
		Help: "The total number of comments accepted and stored",
	})

	submissionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "formguard_submissions_rejected",
		Help: "The total number of comment submissions rejected, by reason",
	}, []string{"reason"})
)

type Options struct {
	Config     *config.Config
	Secret     []byte
	BasePrefix string

	// Store overrides the store described by Config.
	Store store.Interface

	// Clock defaults to the wall clock.
	Clock clock.Clock
}

type Server struct {
	mux     *http.ServeMux
	field   *form.Field
	threads *store.JSON[[]Comment]
	clock   clock.Clock
	opts    Options
}

// New builds the comment board. The context bounds the lifetime of the
// store's background work.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, ErrNoConfig
	}

	codec, err := token.Build(opts.Config.Format, opts.Secret)
	if err != nil {
		return nil, fmt.Errorf("lib: can't build %s codec: %w", opts.Config.Format, err)
	}

	v, err := validator.New(opts.Config.MinWait, opts.Config.MaxWait)
	if err != nil {
		return nil, fmt.Errorf("lib: can't build validator: %w", err)
	}

	st := opts.Store
	if st == nil {
		st, err = opts.Config.Store.Open(ctx)
		if err != nil {
			return nil, fmt.Errorf("lib: %w", err)
		}
	}

	formguard.BasePrefix = opts.BasePrefix
	clk := clock.OrReal(opts.Clock)

	result := &Server{
		field: form.New(codec, v, clk),
		threads: &store.JSON[[]Comment]{
			Underlying: st,
			Prefix:     "thread:",
			Hash:       true,
		},
		clock: clk,
		opts:  opts,
	}

	mux := http.NewServeMux()

	// Helper to add global prefix
	registerWithPrefix := func(pattern string, handler http.Handler, method string) {
		if method != "" {
			method = method + " " // methods must end with a space to register with them
		}

		// Ensure there's no double slash when concatenating BasePrefix and pattern
		basePrefix := strings.TrimSuffix(formguard.BasePrefix, "/")
		prefix := method + basePrefix

		// If pattern doesn't start with a slash, add one
		if !strings.HasPrefix(pattern, "/") {
			pattern = "/" + pattern
		}

		mux.Handle(prefix+pattern, handler)
	}

	registerWithPrefix("/threads/{id}", http.HandlerFunc(result.GetThread), "GET")
	registerWithPrefix("/threads/{id}", http.HandlerFunc(result.PostThread), "POST")
	registerWithPrefix("/healthz", http.HandlerFunc(result.Healthz), "GET")

	result.mux = mux

	slog.Debug("comment board ready",
		"format", codec.Format(),
		"min_wait", opts.Config.MinWait,
		"max_wait", opts.Config.MaxWait,
		"store", opts.Config.Store.Backend,
	)

	return result, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func threadPath(id string) string {
	return strings.TrimSuffix(formguard.BasePrefix, "/") + "/threads/" + id
}
