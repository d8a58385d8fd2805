// Copyright (c) 2025 Justin Cranford

package fortress

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// ID is an opaque 32-byte random identifier. It is hex-serialized, totally
// ordered by byte comparison, and hashable, so it can key a Go map directly
// (§3).
type ID [32]byte

// ZeroID is the all-zero ID; never returned by NewID, used as a sentinel by
// callers that need one (e.g. "no parent").
var ZeroID ID

// NewID draws a fresh random ID from the OS RNG.
func NewID() (ID, error) {
	var id ID
	if _, err := rand.Read(id[:]); err != nil {
		return ZeroID, fmt.Errorf("fortress: generate id: %w", err)
	}
	return id, nil
}

// IDFromHex decodes a lowercase-or-uppercase hex string into an ID.
func IDFromHex(s string) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroID, fmt.Errorf("fortress: decode id hex: %w", err)
	}
	var id ID
	if len(b) != len(id) {
		return ZeroID, fmt.Errorf("fortress: id has wrong length %d, want %d", len(b), len(id))
	}
	copy(id[:], b)
	return id, nil
}

// Hex renders the ID as lowercase hex.
func (id ID) Hex() string { return hex.EncodeToString(id[:]) }

func (id ID) String() string { return id.Hex() }

// Less orders two IDs by byte comparison, used to give ObjectMap and JSON
// serialization a deterministic order (§4.6).
func (id ID) Less(other ID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// MarshalText implements encoding.TextMarshaler so ID round-trips through
// JSON as a hex string.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	v, err := IDFromHex(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
