// Copyright (c) 2025 Justin Cranford

// Package password implements the uniform random string generator used to
// suggest new entry passwords (§4.9).
package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	alphabetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	alphabetLowercase = "abcdefghijklmnopqrstuvwxyz"
	alphabetNumbers   = "0123456789"
)

// RandomString draws length independent uniform samples from the union of
// the selected ASCII classes and the runes in others (duplicates
// collapsed), using the OS RNG with rejection sampling so no alphabet size
// introduces modulo bias (§4.9, testable properties #9-#10). Returns an
// empty string if the resulting alphabet is empty.
func RandomString(length int, uppercase, lowercase, numbers bool, others string) (string, error) {
	alphabet := buildAlphabet(uppercase, lowercase, numbers, others)
	if len(alphabet) == 0 {
		return "", nil
	}

	out := make([]rune, length)
	bound := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, bound)
		if err != nil {
			return "", fmt.Errorf("password: draw random index: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}

// buildAlphabet returns the deduplicated, deterministically ordered set of
// runes enabled by the selected classes and others. Dedup first on a set,
// then flatten in class order (others, uppercase, lowercase, numbers), so
// two calls with the same arguments always produce the same alphabet slice
// even though Go map iteration order is randomized.
func buildAlphabet(uppercase, lowercase, numbers bool, others string) []rune {
	seen := make(map[rune]struct{})
	var alphabet []rune

	add := func(s string) {
		for _, r := range s {
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			alphabet = append(alphabet, r)
		}
	}

	add(others)
	if uppercase {
		add(alphabetUppercase)
	}
	if lowercase {
		add(alphabetLowercase)
	}
	if numbers {
		add(alphabetNumbers)
	}
	return alphabet
}
