// Copyright (c) 2025 Justin Cranford

package password_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	fortressPassword "fortress/internal/password"
)

func TestRandomString_EmptyAlphabetYieldsEmptyString(t *testing.T) {
	t.Parallel()

	s, err := fortressPassword.RandomString(10, false, false, false, "")
	require.NoError(t, err)
	require.Empty(t, s)
}

func TestRandomString_RespectsLength(t *testing.T) {
	t.Parallel()

	s, err := fortressPassword.RandomString(42, true, true, true, "")
	require.NoError(t, err)
	require.Len(t, []rune(s), 42)
}

func TestRandomString_AlphabetRespected(t *testing.T) {
	t.Parallel()

	const allowed = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0%"
	s, err := fortressPassword.RandomString(5000, true, false, false, "0%")
	require.NoError(t, err)

	for _, r := range s {
		require.True(t, strings.ContainsRune(allowed, r), "unexpected rune %q outside enabled classes", r)
	}
}

func TestRandomString_DeduplicatesOthersAgainstClasses(t *testing.T) {
	t.Parallel()

	// "A" is already covered by uppercase; duplicating it in others must not
	// skew the alphabet or break generation.
	s, err := fortressPassword.RandomString(1000, true, false, false, "A")
	require.NoError(t, err)
	for _, r := range s {
		require.True(t, r >= 'A' && r <= 'Z')
	}
}

// TestRandomString_PassesChiSquaredUniformity covers testable property #9:
// random_string(100000, true, true, true, "0%") over a 63-char alphabet
// should yield a chi-squared statistic comfortably below the 335.9 bound at
// any usual significance level for 62 degrees of freedom.
func TestRandomString_PassesChiSquaredUniformity(t *testing.T) {
	t.Parallel()

	const length = 100000
	s, err := fortressPassword.RandomString(length, true, true, true, "0%")
	require.NoError(t, err)

	runes := []rune(s)
	require.Len(t, runes, length)

	counts := make(map[rune]int)
	for _, r := range runes {
		counts[r]++
	}

	alphabetSize := len(counts)
	require.LessOrEqual(t, alphabetSize, 63)

	expected := float64(length) / float64(alphabetSize)
	var chiSquared float64
	for _, count := range counts {
		diff := float64(count) - expected
		chiSquared += diff * diff / expected
	}

	require.Less(t, chiSquared, 335.9)
}
