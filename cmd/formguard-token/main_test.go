package main

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/TecharoHQ/formguard/lib/token"
	"gopkg.in/yaml.v3"
)

type parsedReport struct {
	Format        string  `yaml:"format" json:"format"`
	Token         string  `yaml:"token" json:"token"`
	RemoteAddress string  `yaml:"remoteAddress" json:"remoteAddress"`
	UniqueID      string  `yaml:"uniqueID" json:"uniqueID"`
	IssuedAt      string  `yaml:"issuedAt" json:"issuedAt"`
	Verdict       string  `yaml:"verdict" json:"verdict"`
	Remaining     float64 `yaml:"remainingSeconds" json:"remainingSeconds"`
	Error         string  `yaml:"error" json:"error"`
}

var (
	testSecret  = []byte("correct horse battery staple")
	testBinding = token.Binding{RemoteAddress: "203.0.113.7", UniqueID: "42"}
	testEpoch   = time.Date(1991, 10, 5, 18, 53, 0, 0, time.UTC)
)

func parse(t *testing.T, output []byte, outputFormat string) parsedReport {
	t.Helper()

	var result parsedReport
	var err error
	switch outputFormat {
	case "json":
		err = json.Unmarshal(output, &result)
	default:
		err = yaml.Unmarshal(output, &result)
	}
	if err != nil {
		t.Fatalf("can't parse %s output: %v\n%s", outputFormat, err, output)
	}

	return result
}

func issueToken(t *testing.T, format string) string {
	t.Helper()

	output, err := run(Options{
		Format:  format,
		Secret:  testSecret,
		Binding: testBinding,
		Now:     testEpoch,
		Output:  "json",
	})
	if err != nil {
		t.Fatalf("can't issue %s token: %v", format, err)
	}

	return parse(t, output, "json").Token
}

func TestIssue(t *testing.T) {
	for _, format := range token.Methods() {
		for _, outputFormat := range []string{"yaml", "json"} {
			t.Run(format+"/"+outputFormat, func(t *testing.T) {
				output, err := run(Options{
					Format:  format,
					Secret:  testSecret,
					Binding: testBinding,
					Now:     testEpoch,
					Output:  outputFormat,
				})
				if err != nil {
					t.Fatal(err)
				}

				got := parse(t, output, outputFormat)
				if got.Format != format {
					t.Errorf("wanted format %q, got: %q", format, got.Format)
				}
				if got.Token == "" {
					t.Error("no token was issued")
				}
				if got.RemoteAddress != testBinding.RemoteAddress || got.UniqueID != testBinding.UniqueID {
					t.Errorf("wrong binding in report: %+v", got)
				}
				if got.Verdict != "" {
					t.Errorf("issued tokens have no verdict, got: %q", got.Verdict)
				}
			})
		}
	}
}

func TestInspect(t *testing.T) {
	for _, format := range token.Methods() {
		tok := issueToken(t, format)

		for _, tt := range []struct {
			name          string
			binding       token.Binding
			at            time.Time
			wantVerdict   string
			wantRemaining float64
		}{
			{
				name:          "too soon",
				binding:       testBinding,
				at:            testEpoch.Add(2 * time.Second),
				wantVerdict:   "too_soon",
				wantRemaining: 3,
			},
			{
				name:        "valid",
				binding:     testBinding,
				at:          testEpoch.Add(time.Minute),
				wantVerdict: "valid",
			},
			{
				name:        "expired",
				binding:     testBinding,
				at:          testEpoch.Add(2 * time.Hour),
				wantVerdict: "expired",
			},
			{
				name:        "other thread",
				binding:     token.Binding{RemoteAddress: testBinding.RemoteAddress, UniqueID: "43"},
				at:          testEpoch.Add(time.Minute),
				wantVerdict: "invalid",
			},
		} {
			t.Run(format+"/"+tt.name, func(t *testing.T) {
				output, err := run(Options{
					Format:  format,
					Secret:  testSecret,
					Binding: tt.binding,
					Decode:  tok,
					Now:     tt.at,
					MinWait: 5 * time.Second,
					MaxWait: time.Hour,
					Output:  "yaml",
				})
				if err != nil {
					t.Fatal(err)
				}

				got := parse(t, output, "yaml")
				if got.Verdict != tt.wantVerdict {
					t.Logf("want: %s", tt.wantVerdict)
					t.Logf("got:  %s", got.Verdict)
					t.Error("wrong verdict")
				}
				if got.Remaining != tt.wantRemaining {
					t.Errorf("wanted %v seconds remaining, got: %v", tt.wantRemaining, got.Remaining)
				}
				if tt.wantVerdict == "invalid" && got.Error == "" {
					t.Error("invalid tokens should carry an error")
				}
			})
		}
	}
}

func TestRunErrors(t *testing.T) {
	for _, tt := range []struct {
		name string
		opts Options
		err  error
	}{
		{
			name: "unknown format",
			opts: Options{Format: "rot13", Secret: testSecret, Output: "yaml"},
			err:  token.ErrUnknownFormat,
		},
		{
			name: "unknown output",
			opts: Options{Format: "signed", Secret: testSecret, Binding: testBinding, Now: testEpoch, Output: "toml"},
			err:  ErrUnsupportedOutput,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(tt.opts); !errors.Is(err, tt.err) {
				t.Logf("want: %v", tt.err)
				t.Logf("got:  %v", err)
				t.Error("wrong error")
			}
		})
	}
}
