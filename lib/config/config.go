package config

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"time"

	"github.com/TecharoHQ/formguard"
	"github.com/TecharoHQ/formguard/lib/token"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/yaml"

	// token formats
	_ "github.com/TecharoHQ/formguard/lib/token/all"
)

var (
	ErrUnknownTokenFormat = errors.New("config.Token: unknown format")
	ErrWaitNotPositive    = errors.New("config.Token: min_wait and max_wait must be positive")
	ErrWaitWindowInverted = errors.New("config.Token: min_wait must be shorter than max_wait")
	ErrCommentTTLTooShort = errors.New("config.Comments: ttl must be at least one minute")
	ErrMaxLengthNotValid  = errors.New("config.Comments: max_length must be between 1 and 65536")
	ErrInvalidCIDR        = errors.New("config: invalid trusted proxy CIDR")
	ErrStatusCodeNotValid = errors.New("config.StatusCode: status code not valid, must be between 100 and 599")
)

const (
	DefaultCommentTTL       = 7 * 24 * time.Hour
	DefaultCommentMaxLength = 4096
)

type Token struct {
	Format  string           `json:"format,omitempty"`
	MinWait *metav1.Duration `json:"min_wait,omitempty"`
	MaxWait *metav1.Duration `json:"max_wait,omitempty"`
}

func (t Token) format() string {
	if t.Format == "" {
		return formguard.DefaultFormat
	}
	return t.Format
}

func (t Token) minWait() time.Duration {
	if t.MinWait == nil {
		return formguard.DefaultMinWait
	}
	return t.MinWait.Duration
}

func (t Token) maxWait() time.Duration {
	if t.MaxWait == nil {
		return formguard.DefaultMaxWait
	}
	return t.MaxWait.Duration
}

func (t Token) Valid() error {
	var errs []error

	if _, ok := token.Get(t.format()); !ok {
		errs = append(errs, fmt.Errorf("%w: %q (known formats: %v)", ErrUnknownTokenFormat, t.format(), token.Methods()))
	}

	switch {
	case t.minWait() < 0 || t.maxWait() <= 0:
		errs = append(errs, fmt.Errorf("%w: min_wait=%s max_wait=%s", ErrWaitNotPositive, t.minWait(), t.maxWait()))
	case t.minWait() >= t.maxWait():
		errs = append(errs, fmt.Errorf("%w: min_wait=%s max_wait=%s", ErrWaitWindowInverted, t.minWait(), t.maxWait()))
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: token section is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

type Comments struct {
	TTL       *metav1.Duration `json:"ttl,omitempty"`
	MaxLength int              `json:"max_length,omitempty"`
}

func (c Comments) ttl() time.Duration {
	if c.TTL == nil {
		return DefaultCommentTTL
	}
	return c.TTL.Duration
}

func (c Comments) maxLength() int {
	if c.MaxLength == 0 {
		return DefaultCommentMaxLength
	}
	return c.MaxLength
}

func (c Comments) Valid() error {
	var errs []error

	if c.ttl() < time.Minute {
		errs = append(errs, fmt.Errorf("%w, got: %s", ErrCommentTTLTooShort, c.ttl()))
	}

	if c.maxLength() < 1 || c.maxLength() > 65536 {
		errs = append(errs, fmt.Errorf("%w, got: %d", ErrMaxLengthNotValid, c.maxLength()))
	}

	if len(errs) != 0 {
		return fmt.Errorf("config: comments section is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

type StatusCodes struct {
	Rejected int `json:"REJECTED"`
}

func (sc StatusCodes) Valid() error {
	if sc.Rejected < 100 || sc.Rejected > 599 {
		return fmt.Errorf("status codes not valid:\n%w: rejected is %d", ErrStatusCodeNotValid, sc.Rejected)
	}

	return nil
}

type fileConfig struct {
	Token          Token       `json:"token"`
	Store          *Store      `json:"store,omitempty"`
	Comments       Comments    `json:"comments"`
	TrustedProxies []string    `json:"trusted_proxies,omitempty"`
	StatusCodes    StatusCodes `json:"status_codes"`
}

func (c *fileConfig) Valid() error {
	var errs []error

	if err := c.Token.Valid(); err != nil {
		errs = append(errs, err)
	}

	if c.Store != nil {
		if err := c.Store.Valid(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.Comments.Valid(); err != nil {
		errs = append(errs, err)
	}

	for _, cidr := range c.TrustedProxies {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			errs = append(errs, fmt.Errorf("%w %q: %w", ErrInvalidCIDR, cidr, err))
		}
	}

	if err := c.StatusCodes.Valid(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) != 0 {
		return fmt.Errorf("config is not valid:\n%w", errors.Join(errs...))
	}

	return nil
}

// Load parses and validates a YAML (or JSON) configuration file. Missing
// values are filled in with defaults.
func Load(fin io.Reader, fname string) (*Config, error) {
	c := &fileConfig{
		StatusCodes: StatusCodes{
			Rejected: http.StatusBadRequest,
		},
	}

	if err := yaml.NewYAMLToJSONDecoder(fin).Decode(&c); err != nil {
		return nil, fmt.Errorf("can't parse formguard config YAML %s: %w", fname, err)
	}

	if err := c.Valid(); err != nil {
		return nil, fmt.Errorf("errors validating formguard config %s: %w", fname, err)
	}

	result := &Config{
		Format:           c.Token.format(),
		MinWait:          c.Token.minWait(),
		MaxWait:          c.Token.maxWait(),
		Store:            Store{Backend: "memory"},
		CommentTTL:       c.Comments.ttl(),
		CommentMaxLength: c.Comments.maxLength(),
		StatusCodes:      c.StatusCodes,
	}

	if c.Store != nil {
		result.Store = *c.Store
	}

	for _, cidr := range c.TrustedProxies {
		// already validated
		result.TrustedProxies = append(result.TrustedProxies, netip.MustParsePrefix(cidr).Masked())
	}

	return result, nil
}

// Config is a validated formguard configuration with defaults applied.
type Config struct {
	Format           string
	MinWait          time.Duration
	MaxWait          time.Duration
	Store            Store
	CommentTTL       time.Duration
	CommentMaxLength int
	TrustedProxies   []netip.Prefix
	StatusCodes      StatusCodes
}
