// Copyright (c) 2025 Justin Cranford

// Package fortresscrypto implements the authenticated file format and key
// hierarchy: fixed-size byte newtypes, domain-separated key derivation, the
// on-disk file codec, and the network SIV codec.
package fortresscrypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// SecretKey is a fixed-length byte array holding key material. Equality is
// constant-time and there is no ordering; callers must call Zero once a
// SecretKey is no longer needed.
type SecretKey [32]byte

// ZeroKey is the all-zero SecretKey, returned by constructors on failure.
var ZeroKey SecretKey

// NewSecretKeyFromRandom draws a SecretKey from the OS RNG.
func NewSecretKeyFromRandom() (SecretKey, error) {
	var k SecretKey
	if _, err := rand.Read(k[:]); err != nil {
		return ZeroKey, fmt.Errorf("fortresscrypto: read random key: %w", err)
	}
	return k, nil
}

// SecretKeyFromSlice copies b into a SecretKey, rejecting the wrong length.
func SecretKeyFromSlice(b []byte) (SecretKey, bool) {
	var k SecretKey
	if len(b) != len(k) {
		return ZeroKey, false
	}
	copy(k[:], b)
	return k, true
}

// secretKeyFromHex decodes a lowercase-or-uppercase hex string into a
// SecretKey, rejecting the wrong length.
func secretKeyFromHex(s string) (SecretKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroKey, fmt.Errorf("fortresscrypto: decode key hex: %w", err)
	}
	k, ok := SecretKeyFromSlice(b)
	if !ok {
		return ZeroKey, fmt.Errorf("fortresscrypto: key has wrong length %d, want %d", len(b), len(k))
	}
	return k, nil
}

// Equal reports whether two SecretKeys are equal, in constant time.
func (k SecretKey) Equal(other SecretKey) bool {
	return subtle.ConstantTimeCompare(k[:], other[:]) == 1
}

// Hex renders the key as lowercase hex. Secret values are still rendered to
// hex on demand (e.g. for the sync bearer token); callers control how long
// the resulting string lives.
func (k SecretKey) Hex() string {
	return hex.EncodeToString(k[:])
}

// Zero overwrites the key material with zeroes. Go provides no destructor
// hook equivalent to Drop, so callers must call this explicitly once a
// SecretKey is no longer needed.
func (k *SecretKey) Zero() {
	for i := range k {
		k[i] = 0
	}
}

// Tag is a fixed-length public byte array: a MAC tag or a SIV. Unlike
// SecretKey it supports ordering and is safe to use as a map key.
type Tag [32]byte

// ZeroTag is the all-zero Tag, used as the sentinel "create new object" SIV
// in the sync protocol.
var ZeroTag Tag

// TagFromSlice copies b into a Tag, rejecting the wrong length.
func TagFromSlice(b []byte) (Tag, bool) {
	var t Tag
	if len(b) != len(t) {
		return ZeroTag, false
	}
	copy(t[:], b)
	return t, true
}

// TagFromHex decodes a lowercase-or-uppercase hex string into a Tag.
func TagFromHex(s string) (Tag, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroTag, fmt.Errorf("fortresscrypto: decode tag hex: %w", err)
	}
	t, ok := TagFromSlice(b)
	if !ok {
		return ZeroTag, fmt.Errorf("fortresscrypto: tag has wrong length %d, want %d", len(b), len(t))
	}
	return t, nil
}

// Equal reports whether two Tags are equal, in constant time.
func (t Tag) Equal(other Tag) bool {
	return subtle.ConstantTimeCompare(t[:], other[:]) == 1
}

// Less orders two Tags by byte comparison.
func (t Tag) Less(other Tag) bool {
	for i := range t {
		if t[i] != other[i] {
			return t[i] < other[i]
		}
	}
	return false
}

// Hex renders the tag as lowercase hex.
func (t Tag) Hex() string {
	return hex.EncodeToString(t[:])
}

// Bytes returns the tag's bytes as a slice, satisfying AsRef<[u8]>-style
// call sites that need a []byte view.
func (t Tag) Bytes() []byte {
	return t[:]
}

// MarshalText implements encoding.TextMarshaler so Tag round-trips through
// JSON as a hex string, matching the wire format in §6.
func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tag) UnmarshalText(text []byte) error {
	v, err := TagFromHex(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
