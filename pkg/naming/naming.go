// Package naming generates batch tokens, random dataset names and URL-safe
// slugs.
//
// Tokens guard upload sessions, so they come from crypto/rand; guessing one
// would let an attacker append files to someone else's batch. Random dataset
// names only need to be unlikely to collide, but they share the same source
// since the cost is negligible.
package naming

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

const (
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	nameAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"

	// DefaultTokenLength matches the length of tokens handed to upload
	// clients.
	DefaultTokenLength = 32

	// DefaultNameLength is the length of generated dataset names.
	DefaultNameLength = 16
)

// TokenGenerator produces batch tokens.
type TokenGenerator struct {
	// Length of generated tokens. Zero means DefaultTokenLength.
	Length int
}

// Generate returns a new cryptographically unpredictable token.
func (g *TokenGenerator) Generate() (string, error) {
	length := g.Length
	if length <= 0 {
		length = DefaultTokenLength
	}
	return randomString(length, tokenAlphabet)
}

// NameGenerator produces random dataset names. Names are lowercase
// alphanumeric so they double as their own slug.
type NameGenerator struct {
	// Length of generated names. Zero means DefaultNameLength.
	Length int
}

// Generate returns a new random dataset name, e.g. "7kd0gxti9qoemsrk".
func (g *NameGenerator) Generate() (string, error) {
	length := g.Length
	if length <= 0 {
		length = DefaultNameLength
	}
	return randomString(length, nameAlphabet)
}

func randomString(length int, alphabet string) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

var (
	slugInvalid  = regexp.MustCompile(`[^a-z0-9_-]+`)
	slugSqueeze  = regexp.MustCompile(`-{2,}`)
	slugValidity = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

// Slugify converts an arbitrary name into a URL-safe slug: lowercase
// alphanumerics with '-' and '_', no leading or trailing separators.
// Returns an empty string when nothing usable remains.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugInvalid.ReplaceAllString(slug, "-")
	slug = slugSqueeze.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-_")
	return slug
}

// IsValidSlug reports whether s is already an acceptable slug.
func IsValidSlug(s string) bool {
	return slugValidity.MatchString(s)
}

// UniqueSlug returns base if taken reports it free, otherwise appends an
// incrementing numeric suffix (base-2, base-3, ...) until a free slug is
// found or ctx is cancelled.
func UniqueSlug(ctx context.Context, base string, taken func(slug string) (bool, error)) (string, error) {
	inUse, err := taken(base)
	if err != nil {
		return "", err
	}
	if !inUse {
		return base, nil
	}

	for i := 2; ; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := fmt.Sprintf("%s-%d", base, i)
		inUse, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !inUse {
			return candidate, nil
		}
	}
}
