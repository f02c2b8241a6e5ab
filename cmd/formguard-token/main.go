package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/TecharoHQ/formguard"
	"github.com/TecharoHQ/formguard/internal"
	"github.com/TecharoHQ/formguard/lib/token"
	_ "github.com/TecharoHQ/formguard/lib/token/all"
	"github.com/TecharoHQ/formguard/lib/validator"
	"sigs.k8s.io/yaml"
)

var (
	secretKey     = flag.String("secret-key", "", "secret key used to sign and encrypt submission tokens")
	secretKeyFile = flag.String("secret-key-file", "", "file name containing value for secret-key")
	format        = flag.String("format", formguard.DefaultFormat, "token format: "+strings.Join(token.Methods(), ", "))
	remoteIP      = flag.String("ip", "127.0.0.1", "remote address the token is bound to")
	uniqueID      = flag.String("uid", "", "unique identifier the token is bound to, such as a thread id")
	decode        = flag.String("decode", "", "decode and validate this token instead of issuing one")
	at            = flag.String("at", "", "RFC 3339 time to issue or validate at (defaults to now)")
	minWait       = flag.Duration("min-wait", formguard.DefaultMinWait, "minimum time between issuance and submission")
	maxWait       = flag.Duration("max-wait", formguard.DefaultMaxWait, "maximum age of a token")
	outputFormat  = flag.String("output-format", "yaml", "output format: yaml or json")
	helpFlag      = flag.Bool("help", false, "show help")
)

var ErrUnsupportedOutput = errors.New("unsupported output format")

// Report describes an issued or decoded token.
type Report struct {
	Format        string     `json:"format"`
	Token         string     `json:"token"`
	RemoteAddress string     `json:"remoteAddress"`
	UniqueID      string     `json:"uniqueID"`
	IssuedAt      *time.Time `json:"issuedAt,omitempty"`
	Verdict       string     `json:"verdict,omitempty"`
	Remaining     float64    `json:"remainingSeconds,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// Options is everything one invocation needs.
type Options struct {
	Format  string
	Secret  []byte
	Binding token.Binding
	Decode  string
	Now     time.Time
	MinWait time.Duration
	MaxWait time.Duration
	Output  string
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s [options] -secret-key <key> -uid <id>\n\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\nExamples:")
		fmt.Fprintln(os.Stderr, "  # Issue a token for thread 42")
		fmt.Fprintln(os.Stderr, "  formguard-token -secret-key-file key.txt -uid 42")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "  # Check whether a token would be accepted an hour from now")
		fmt.Fprintln(os.Stderr, "  formguard-token -secret-key-file key.txt -uid 42 -decode <token> -at 2026-01-01T13:00:00Z")
		os.Exit(2)
	}
}

func main() {
	flag.Parse()

	if len(flag.Args()) > 0 || *helpFlag {
		flag.Usage()
	}

	secret, err := internal.LoadSecret(*secretKey, *secretKeyFile)
	if err != nil {
		log.Fatal(err)
	}

	now := time.Now()
	if *at != "" {
		now, err = time.Parse(time.RFC3339, *at)
		if err != nil {
			log.Fatalf("can't parse -at: %v", err)
		}
	}

	output, err := run(Options{
		Format:  *format,
		Secret:  secret,
		Binding: token.Binding{RemoteAddress: *remoteIP, UniqueID: *uniqueID},
		Decode:  *decode,
		Now:     now,
		MinWait: *minWait,
		MaxWait: *maxWait,
		Output:  *outputFormat,
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Print(string(output))
}

func run(opts Options) ([]byte, error) {
	codec, err := token.Build(opts.Format, opts.Secret)
	if err != nil {
		return nil, err
	}

	var report *Report
	if opts.Decode == "" {
		report, err = issue(codec, opts)
	} else {
		report, err = inspect(codec, opts)
	}
	if err != nil {
		return nil, err
	}

	return render(report, opts.Output)
}

func issue(codec token.Codec, opts Options) (*Report, error) {
	tc := token.New(opts.Now, opts.Binding)
	tok, err := codec.Encode(tc)
	if err != nil {
		return nil, fmt.Errorf("can't encode token: %w", err)
	}

	return &Report{
		Format:        codec.Format(),
		Token:         tok,
		RemoteAddress: tc.RemoteAddress,
		UniqueID:      tc.UniqueID,
		IssuedAt:      &tc.IssuedAt,
	}, nil
}

func inspect(codec token.Codec, opts Options) (*Report, error) {
	v, err := validator.New(opts.MinWait, opts.MaxWait)
	if err != nil {
		return nil, err
	}

	tc, decodeErr := codec.Decode(opts.Decode, opts.Binding)
	verdict := v.Check(opts.Decode, tc, decodeErr, opts.Binding, opts.Now)

	report := &Report{
		Format:        codec.Format(),
		Token:         opts.Decode,
		RemoteAddress: opts.Binding.RemoteAddress,
		UniqueID:      opts.Binding.UniqueID,
		Verdict:       verdict.Kind.String(),
		Remaining:     verdict.RemainingSeconds(),
	}
	if decodeErr == nil {
		report.RemoteAddress = tc.RemoteAddress
		report.UniqueID = tc.UniqueID
		report.IssuedAt = &tc.IssuedAt
	}
	if verdict.Reason != nil {
		report.Error = verdict.Reason.Error()
	}

	return report, nil
}

func render(report *Report, outputFormat string) ([]byte, error) {
	switch strings.ToLower(outputFormat) {
	case "yaml":
		return yaml.Marshal(report)
	case "json":
		output, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(output, '\n'), nil
	default:
		return nil, fmt.Errorf("%w: %s (use yaml or json)", ErrUnsupportedOutput, outputFormat)
	}
}
