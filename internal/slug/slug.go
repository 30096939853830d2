// Package slug produces canonical slugs and generated identifiers. Every
// function is pure and idempotent: normalizing an already-normalized slug
// returns it unchanged.
package slug

import (
	"crypto/rand"
	"fmt"
	"strings"

	"reqcore/pkg/domain"
)

// Normalize lowercases the input, collapses runs of non-alphanumeric
// characters into single hyphens, and strips leading and trailing hyphens.
// It fails with domain.InvalidSlugError when the result does not start with a
// letter (which includes the empty result).
func Normalize(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	pendingHyphen := false
	for _, r := range strings.ToLower(raw) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			if b.Len() > 0 {
				pendingHyphen = true
			}
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	out := b.String()
	if out == "" || out[0] < 'a' || out[0] > 'z' {
		return "", domain.InvalidSlugError{Input: raw}
	}
	return out, nil
}

// DeriveFromName normalizes name, falling back to fallback when name yields
// nothing usable. The fallback is expected to be a valid slug seed (callers
// typically pass a short random suffix with a letter prefix).
func DeriveFromName(name, fallback string) (string, error) {
	if out, err := Normalize(name); err == nil {
		return out, nil
	}
	return Normalize(fallback)
}

// externalIDAlphabet is Crockford base32: no I, L, O, U, so generated
// identifiers stay unambiguous when read aloud or retyped.
const externalIDAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const externalIDLength = 8

var externalIDPrefixes = map[domain.EntityType]string{
	domain.EntityRequirement: "REQ",
	domain.EntityTest:        "TST",
}

// ExternalID produces a short, collision-resistant, human-scannable
// identifier for the given entity kind, e.g. "REQ-7GQ2M4KX". Kinds without a
// registered prefix use the uppercased kind name.
func ExternalID(kind domain.EntityType) string {
	prefix, ok := externalIDPrefixes[kind]
	if !ok {
		prefix = strings.ToUpper(string(kind))
	}
	return fmt.Sprintf("%s-%s", prefix, randomToken(externalIDLength, externalIDAlphabet))
}

// RandomSuffix returns a short lowercase token starting with a letter,
// suitable as a DeriveFromName fallback.
func RandomSuffix(n int) string {
	if n < 1 {
		n = 1
	}
	const letters = "abcdefghijklmnopqrstuvwxyz"
	const tail = "abcdefghijklmnopqrstuvwxyz0123456789"
	head := randomToken(1, letters)
	if n == 1 {
		return head
	}
	return head + randomToken(n-1, tail)
}

func randomToken(n int, alphabet string) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}
