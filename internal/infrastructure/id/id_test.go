package id

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDGenerator(t *testing.T) {
	g := NewUUIDGenerator()
	a, b := g.NewID(), g.NewID()

	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestReferenceGeneratorIsUniqueAndPrefixed(t *testing.T) {
	g, err := NewReferenceGenerator(7)
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for range 1000 {
		ref := g.NewID()
		require.True(t, strings.HasPrefix(ref, ReferencePrefix))
		_, dup := seen[ref]
		require.False(t, dup, "duplicate reference %s", ref)
		seen[ref] = struct{}{}
	}
}

func TestReferenceGeneratorRejectsBadNode(t *testing.T) {
	_, err := NewReferenceGenerator(5000)
	assert.Error(t, err)
}

func TestOrderNumbers(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.Local)
	for range 200 {
		n := NewOrderNumbers().NewNumber(now)
		require.Regexp(t, `^ORD20250314\d{3}$`, n)
		assert.NotEqual(t, "ORD20250314000", n)
	}
}
