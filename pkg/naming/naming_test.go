package naming

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenGenerator(t *testing.T) {
	gen := &TokenGenerator{}

	token, err := gen.Generate()
	require.NoError(t, err)
	assert.Len(t, token, DefaultTokenLength)
	assert.Regexp(t, regexp.MustCompile(`^[a-zA-Z0-9]+$`), token)

	other, err := gen.Generate()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	short, err := (&TokenGenerator{Length: 8}).Generate()
	require.NoError(t, err)
	assert.Len(t, short, 8)
}

func TestNameGenerator(t *testing.T) {
	gen := &NameGenerator{}

	name, err := gen.Generate()
	require.NoError(t, err)
	assert.Len(t, name, DefaultNameLength)
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]+$`), name)

	// Generated names are valid slugs as-is.
	assert.True(t, IsValidSlug(name))
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Aerial Labs", "aerial-labs"},
		{"  My Dataset!  ", "my-dataset"},
		{"already-valid_slug", "already-valid_slug"},
		{"Ünïcode Näme", "n-code-n-me"},
		{"---", ""},
		{"UPPER", "upper"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), "input %q", tt.in)
	}
}

func TestIsValidSlug(t *testing.T) {
	assert.True(t, IsValidSlug("aerial"))
	assert.True(t, IsValidSlug("aerial-labs_2"))
	assert.False(t, IsValidSlug("Aerial"))
	assert.False(t, IsValidSlug("-leading"))
	assert.False(t, IsValidSlug(""))
	assert.False(t, IsValidSlug("has space"))
}

func TestUniqueSlug(t *testing.T) {
	ctx := context.Background()

	existing := map[string]bool{"survey": true, "survey-2": true}
	taken := func(slug string) (bool, error) { return existing[slug], nil }

	slug, err := UniqueSlug(ctx, "fresh", taken)
	require.NoError(t, err)
	assert.Equal(t, "fresh", slug)

	slug, err = UniqueSlug(ctx, "survey", taken)
	require.NoError(t, err)
	assert.Equal(t, "survey-3", slug)

	boom := errors.New("db down")
	_, err = UniqueSlug(ctx, "survey", func(string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}
