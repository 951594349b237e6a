// Package ticket mints and recognises QR check-in tokens.
//
// A token is a capability: whoever presents it can check the registration
// in. Tokens are random UUIDv4 values (122 bits of entropy) rendered in
// canonical lowercase form.
package ticket

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// MinInputLength is the shortest raw input that can possibly carry a token
// (32 hex digits without separators).
const MinInputLength = 32

var tokenPattern = regexp.MustCompile(`(?i)[0-9a-f]{8}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{4}-?[0-9a-f]{12}`)

// Issuer mints tokens. The zero value is ready to use.
type Issuer struct {
	// random is swapped in tests to exercise entropy failures.
	random func() (uuid.UUID, error)
}

// NewIssuer returns an Issuer backed by crypto/rand.
func NewIssuer() *Issuer {
	return &Issuer{random: uuid.NewRandom}
}

// Issue mints a fresh token for the given registration.
func (i *Issuer) Issue(registrationID string) (string, error) {
	if registrationID == "" {
		return "", errors.New("issue ticket: registration id is required")
	}
	gen := uuid.NewRandom
	if i != nil && i.random != nil {
		gen = i.random
	}
	id, err := gen()
	if err != nil {
		return "", fmt.Errorf("issue ticket for %s: %w", registrationID, err)
	}
	return id.String(), nil
}

// MaxCandidates bounds how many token-shaped values Candidates returns.
const MaxCandidates = 8

// Extract pulls the first well-formed token out of scanned or typed input.
// Input may carry whitespace, quotes, a URL or a label around the token. It
// reports false when no token is present; it never fails loudly.
func Extract(raw string) (string, bool) {
	c := Candidates(raw)
	if len(c) == 0 {
		return "", false
	}
	return c[0], true
}

// Candidates returns every distinct well-formed token in the input, in the
// order they appear. A scanned check-in URL often carries other UUIDs, such
// as the event id, ahead of the ticket itself.
func Candidates(raw string) []string {
	s := strings.TrimSpace(raw)
	if len(s) < MinInputLength {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, match := range tokenPattern.FindAllString(s, -1) {
		id, err := uuid.Parse(match)
		if err != nil || id.Version() != 4 {
			continue
		}
		tok := id.String()
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
		if len(out) == MaxCandidates {
			break
		}
	}
	return out
}
