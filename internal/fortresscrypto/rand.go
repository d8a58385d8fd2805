// Copyright (c) 2025 Justin Cranford

package fortresscrypto

import "crypto/rand"

// randRead fills b from the OS cryptographic RNG (§4.1).
func randRead(b []byte) (int, error) {
	return rand.Read(b)
}
