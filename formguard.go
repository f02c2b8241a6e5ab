// Package formguard contains the global constants shared by the formguard
// token field and its reference server.
package formguard

import "time"

// Version is the current version of formguard.
//
// This variable is set at build time using the -X linker flag. If not set,
// it defaults to "devel".
var Version = "devel"

// BasePrefix is a global prefix for all formguard endpoints. Can be emptied
// to remove the prefix entirely.
var BasePrefix = ""

const (
	// FieldName is the name of the hidden form field carrying the
	// submission token.
	FieldName = "magic"

	// HoneypotFieldName is the name of the invisible text field that humans
	// leave empty.
	HoneypotFieldName = "author_bogus_name"

	// MaxTokenLength is the longest submitted token that will be considered
	// for decoding at all.
	MaxTokenLength = 1024

	// DefaultMinWait is the default minimum time between rendering a form and
	// submitting it. Faster submissions are assumed to be automated.
	DefaultMinWait = 5 * time.Second

	// DefaultMaxWait is the default maximum age of a submission token.
	DefaultMaxWait = time.Hour

	// DefaultFormat is the default token codec.
	DefaultFormat = "sealed"
)
