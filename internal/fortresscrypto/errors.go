// Copyright (c) 2025 Justin Cranford

package fortresscrypto

import "errors"

// Sentinel CryptoError values (§7). Wrong password and corrupted ciphertext
// are deliberately indistinguishable: both surface as ErrDecryption.
var (
	ErrDecryption         = errors.New("fortresscrypto: decryption failed (bad mac, bad siv, or wrong password)")
	ErrBadChecksum        = errors.New("fortresscrypto: outer checksum mismatch")
	ErrTruncatedData      = errors.New("fortresscrypto: data shorter than the minimum valid length")
	ErrBadScryptParameters = errors.New("fortresscrypto: scrypt parameters out of range")
	ErrUnsupportedVersion = errors.New("fortresscrypto: unsupported file format version")
)
