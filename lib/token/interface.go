package token

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry map[string]Factory = map[string]Factory{}
	regLock  sync.RWMutex
)

func Register(name string, f Factory) {
	regLock.Lock()
	defer regLock.Unlock()

	registry[name] = f
}

func Get(name string) (Factory, bool) {
	regLock.RLock()
	defer regLock.RUnlock()
	result, ok := registry[name]
	return result, ok
}

func Methods() []string {
	regLock.RLock()
	defer regLock.RUnlock()
	var result []string
	for method := range registry {
		result = append(result, method)
	}
	sort.Strings(result)
	return result
}

// Build looks up the codec factory registered as format and builds it with
// secret.
func Build(format string, secret []byte) (Codec, error) {
	f, ok := Get(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q (known formats: %v)", ErrUnknownFormat, format, Methods())
	}

	return f.Build(secret)
}

// Factory builds a Codec keyed with the process-wide secret.
type Factory interface {
	Build(secret []byte) (Codec, error)
}

// Codec turns a Context into an opaque, URL-safe token and back.
//
// Implementations are immutable once built and safe for concurrent use.
type Codec interface {
	// Format returns the name the codec is registered under.
	Format() string

	// Encode a token for tc.
	Encode(tc Context) (string, error)

	// Decode tok. claim is what the current request says about itself;
	// codecs that do not carry the binding inside the token verify against it
	// and echo it back, codecs that do return the binding they recovered.
	// Every failure wraps ErrMalformed.
	Decode(tok string, claim Binding) (Context, error)
}
