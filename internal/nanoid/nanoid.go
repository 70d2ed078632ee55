// Package nanoid generates the 21-character, URL-safe, CSPRNG-backed
// identifiers spec §3 requires for execution and step-result ids. It is
// modelled on tako's internal/engine/runid.go (Generate/Parse/IsValid trio),
// adapted from that file's timestamp-prefixed, math/rand-seeded scheme to the
// NanoID alphabet and a cryptographic source, since executionId is an
// externally-opaque, collision-sensitive identifier rather than a
// human-readable run label.
package nanoid

import (
	"fmt"
	"regexp"

	gonanoid "github.com/jaevor/go-nanoid"
)

// Length is the fixed id length spec §3 mandates.
const Length = 21

var shapeRe = regexp.MustCompile(`^[A-Za-z0-9_-]{21}$`)

// generator is built once; go-nanoid's constructor pre-computes the bit mask
// for the 64-character alphabet and reads crypto/rand in batches internally.
var generator = mustGenerator()

func mustGenerator() func() string {
	gen, err := gonanoid.Standard(Length)
	if err != nil {
		panic(fmt.Sprintf("nanoid: failed to initialize generator: %v", err))
	}
	return gen
}

// New returns a fresh 21-character id.
func New() string {
	return generator()
}

// IsValidShape reports whether s has the exact NanoID shape spec §6
// requires before any storage lookup is attempted.
func IsValidShape(s string) bool {
	return shapeRe.MatchString(s)
}
