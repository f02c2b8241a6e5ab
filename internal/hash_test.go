package internal

import (
	"fmt"
	"testing"
)

// Thread IDs as they show up in comment board URLs
var threadInputs = []string{
	"1",
	"16",
	"blog/2024/hello-world",
	"blog/2024/hello-world/",
	"docs/getting-started",
	"ünïcödé",
	"a very long thread identifier that somebody pasted from a page title with spaces in it",
}

func BenchmarkFastHash_ThreadInputs(b *testing.B) {
	for i := 0; b.Loop(); i++ {
		_ = FastHash(threadInputs[i%len(threadInputs)])
	}
}

func TestHashCollisions(t *testing.T) {
	hashes := make(map[string]string)
	for _, input := range threadInputs {
		hash := FastHash(input)
		if existing, exists := hashes[hash]; exists {
			t.Errorf("collision: %q and %q both hash to %s", input, existing, hash)
		}
		hashes[hash] = input
	}

	patterns := []string{
		"%d",
		"thread-%d",
		"blog/%d/",
		"post-%016x",
	}

	count := 0
	for _, pattern := range patterns {
		for i := range 10000 {
			input := fmt.Sprintf(pattern, i)
			hash := FastHash(input)
			if existing, exists := hashes[hash]; exists && existing != input {
				t.Errorf("collision in sequential test: %q and %q both hash to %s", input, existing, hash)
			}
			hashes[hash] = input
			count++
		}
	}
	t.Logf("%d sequential thread IDs, no collisions", count)
}

func TestFastHashFormat(t *testing.T) {
	for _, input := range append([]string{""}, threadInputs...) {
		hash := FastHash(input)

		if len(hash) == 0 {
			t.Errorf("Empty hash for input %q", input)
		}

		// xxhash is 64-bit so max 16 hex chars
		if len(hash) > 16 {
			t.Errorf("Hash too long for input %q: %s (length %d)", input, hash, len(hash))
		}

		for _, char := range hash {
			if !((char >= '0' && char <= '9') || (char >= 'a' && char <= 'f')) {
				t.Errorf("Non-hex character %c in hash %s for input %q", char, hash, input)
			}
		}
	}
}
