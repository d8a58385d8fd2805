// Copyright (c) 2025 Justin Cranford

package fortresscrypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

// MasterKeyUsernameSalt and LoginUsernameSalt are hard-coded 32-byte
// constants, reused verbatim from the historical source so that the salt
// derived for a given username never changes across versions of this
// library (§4.2).
var (
	MasterKeyUsernameSalt = SecretKey{
		0x51, 0xc3, 0xd0, 0x0b, 0xde, 0x2b, 0x32, 0x58, 0xca, 0x17, 0x92, 0x72, 0x15, 0x3e, 0xd0, 0xfd,
		0x2e, 0x47, 0x56, 0x04, 0xda, 0x14, 0xba, 0xc2, 0xb7, 0xa3, 0xb9, 0xbc, 0xb0, 0x50, 0x4f, 0xba,
	}
	LoginUsernameSalt = SecretKey{
		0x87, 0x65, 0x09, 0x06, 0xef, 0xda, 0x47, 0x65, 0x7a, 0x1f, 0x95, 0x36, 0x8f, 0x7a, 0xf7, 0x11,
		0xc0, 0xd1, 0x0e, 0x51, 0x47, 0x35, 0x44, 0x3c, 0x0b, 0xdc, 0xa4, 0x6e, 0x11, 0x81, 0xaa, 0xc4,
	}
)

// Scrypt cost parameters for the MasterKey. Callers pass the cheaper
// DebugMasterKeyParams instead of ReleaseMasterKeyParams so local
// development and tests don't pay the multi-minute release cost.
const (
	masterKeyScryptLogNRelease = 20
	masterKeyScryptLogNDebug   = 14
	masterKeyScryptR           = 8
	masterKeyScryptPRelease    = 128
	masterKeyScryptPDebug      = 1
)

// MasterKeyParams selects the Scrypt cost for MasterKey derivation. Debug is
// only for tests and local development; Release is the ~$50M-to-crack
// default described in §4.2.
type MasterKeyParams struct {
	LogN uint8
	R    uint32
	P    uint32
}

// ReleaseMasterKeyParams is the default, expensive cost used in production.
var ReleaseMasterKeyParams = MasterKeyParams{LogN: masterKeyScryptLogNRelease, R: masterKeyScryptR, P: masterKeyScryptPRelease}

// DebugMasterKeyParams is the cheap cost used by tests.
var DebugMasterKeyParams = MasterKeyParams{LogN: masterKeyScryptLogNDebug, R: masterKeyScryptR, P: masterKeyScryptPDebug}

// MasterKey is the expensive Scrypt output derived from (username,
// password). It is the root of the derived-key tree and is never
// transmitted (§4.2).
type MasterKey struct {
	key SecretKey
}

// DeriveMasterKey runs Scrypt(password, HMAC(MasterKeyUsernameSalt,
// username), ...) under the given cost parameters. This call is intended to
// be slow; callers should run it off the UI thread.
func DeriveMasterKey(username, password []byte, params MasterKeyParams) (MasterKey, error) {
	salt := hmacSHA256(MasterKeyUsernameSalt, username)
	dk, err := scrypt.Key(password, salt[:], 1<<params.LogN, int(params.R), int(params.P), 32)
	if err != nil {
		return MasterKey{}, fmt.Errorf("fortresscrypto: derive master key: %w", err)
	}
	k, _ := SecretKeyFromSlice(dk)
	return MasterKey{key: k}, nil
}

// Equal reports whether two MasterKeys are equal, in constant time.
func (m MasterKey) Equal(other MasterKey) bool { return m.key.Equal(other.key) }

// Hex renders the MasterKey as lowercase hex (§4.1: secret newtypes support
// hex serialization). It is stored, in this form, as part of the database's
// JSON wire format (§6).
func (m MasterKey) Hex() string { return m.key.Hex() }

// MasterKeyFromHex decodes a lowercase-or-uppercase hex string into a
// MasterKey, as used when deserializing the persisted database.
func MasterKeyFromHex(s string) (MasterKey, error) {
	k, err := secretKeyFromHex(s)
	if err != nil {
		return MasterKey{}, fmt.Errorf("fortresscrypto: decode master key: %w", err)
	}
	return MasterKey{key: k}, nil
}

// Zero wipes the underlying key material.
func (m *MasterKey) Zero() { m.key.Zero() }

// HashUsernameForLogin computes the server-visible login ID: HMAC(
// LoginUsernameSalt, username), so the server never learns the real
// username (§3, §4.2).
func HashUsernameForLogin(username []byte) Tag {
	mac := hmacSHA256(LoginUsernameSalt, username)
	t, _ := TagFromSlice(mac[:])
	return t
}

// derivativeKeyID enumerates the domain-separation labels as a closed set
// so a new derived key can't accidentally reuse an existing label (§4.2).
type derivativeKeyID int

const (
	derivLoginKey derivativeKeyID = iota
	derivNetworkSaltKey
	derivNetworkMacKey
	derivNetworkEncryptionKey
	derivFileSaltKey
	derivFileMacKey
	derivFileEncryptionKey
)

func (id derivativeKeyID) label() []byte {
	switch id {
	case derivLoginKey:
		return []byte("login-key")
	case derivNetworkSaltKey:
		return []byte("network-salt-key")
	case derivNetworkMacKey:
		return []byte("network-mac-key")
	case derivNetworkEncryptionKey:
		return []byte("network-encryption-key")
	case derivFileSaltKey:
		return []byte("file-salt-key")
	case derivFileMacKey:
		return []byte("file-mac-key")
	case derivFileEncryptionKey:
		return []byte("file-encryption-key")
	default:
		panic(fmt.Sprintf("fortresscrypto: unknown derivative key id %d", id))
	}
}

func deriveKey(parent SecretKey, id derivativeKeyID) SecretKey {
	digest := hmacSHA256(parent, id.label())
	k, _ := SecretKeyFromSlice(digest[:])
	return k
}

func hmacSHA256(key SecretKey, data []byte) [32]byte {
	mac := hmac.New(sha256.New, key[:])
	mac.Write(data)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// LoginKey is the bearer credential the sync client presents alongside
// LoginID (§4.2, §4.8).
type LoginKey struct {
	key SecretKey
}

// DeriveLoginKey derives LoginKey = HMAC(MasterKey, "login-key").
func DeriveLoginKey(master MasterKey) LoginKey {
	return LoginKey{key: deriveKey(master.key, derivLoginKey)}
}

// Hex renders the LoginKey as lowercase hex, as used in the Authorization
// bearer token (§4.8).
func (k LoginKey) Hex() string { return k.key.Hex() }

// Equal reports whether two LoginKeys are equal, in constant time.
func (k LoginKey) Equal(other LoginKey) bool { return k.key.Equal(other.key) }

// Zero wipes the underlying key material.
func (k *LoginKey) Zero() { k.key.Zero() }

// NetworkKeySuite bundles the salt/mac/encryption sub-keys used to encrypt
// objects deterministically over the network (§4.2, §4.4).
type NetworkKeySuite struct {
	SaltKey       SecretKey
	MacKey        SecretKey
	EncryptionKey SecretKey
}

// DeriveNetworkKeySuite derives the three network sub-keys from MasterKey.
func DeriveNetworkKeySuite(master MasterKey) NetworkKeySuite {
	return NetworkKeySuite{
		SaltKey:       deriveKey(master.key, derivNetworkSaltKey),
		MacKey:        deriveKey(master.key, derivNetworkMacKey),
		EncryptionKey: deriveKey(master.key, derivNetworkEncryptionKey),
	}
}

// Zero wipes all three sub-keys.
func (s *NetworkKeySuite) Zero() {
	s.SaltKey.Zero()
	s.MacKey.Zero()
	s.EncryptionKey.Zero()
}

// FileEncryptionParams are the per-file Scrypt cost parameters and salt
// stored in the file header (§4.2, §4.3).
type FileEncryptionParams struct {
	LogN uint8
	R    uint32
	P    uint32
	Salt [32]byte
}

// Release-build defaults: log_n=18, r=8, p=1; log_n=8 in debug (§4.2).
const (
	fileKeyScryptLogNRelease = 18
	fileKeyScryptLogNDebug   = 8
	fileKeyScryptR           = 8
	fileKeyScryptP           = 1
)

// NewReleaseFileEncryptionParams draws a fresh random salt and returns the
// release-cost parameters for a new save (§4.2).
func NewReleaseFileEncryptionParams() (FileEncryptionParams, error) {
	return newFileEncryptionParams(fileKeyScryptLogNRelease)
}

// NewDebugFileEncryptionParams is the cheap variant used by tests and debug
// builds.
func NewDebugFileEncryptionParams() (FileEncryptionParams, error) {
	return newFileEncryptionParams(fileKeyScryptLogNDebug)
}

func newFileEncryptionParams(logN uint8) (FileEncryptionParams, error) {
	var params FileEncryptionParams
	params.LogN = logN
	params.R = fileKeyScryptR
	params.P = fileKeyScryptP
	if _, err := randRead(params.Salt[:]); err != nil {
		return FileEncryptionParams{}, fmt.Errorf("fortresscrypto: generate file salt: %w", err)
	}
	return params, nil
}

// FileKeySuite bundles the salt/mac/encryption sub-keys used to encrypt the
// on-disk file (§4.2, §4.3).
type FileKeySuite struct {
	SaltKey       SecretKey
	MacKey        SecretKey
	EncryptionKey SecretKey
}

// DeriveFileKeySuite runs Scrypt(password, params.Salt, ...) to get the
// per-file FileKey, then derives the three sub-keys from it. This call is
// intended to be slow relative to request latency but far cheaper than
// MasterKey derivation.
func DeriveFileKeySuite(password []byte, params FileEncryptionParams) (FileKeySuite, error) {
	if params.R == 0 || params.P == 0 {
		return FileKeySuite{}, ErrBadScryptParameters
	}
	dk, err := scrypt.Key(password, params.Salt[:], 1<<params.LogN, int(params.R), int(params.P), 32)
	if err != nil {
		return FileKeySuite{}, fmt.Errorf("%w: %w", ErrBadScryptParameters, err)
	}
	fileKey, _ := SecretKeyFromSlice(dk)
	suite := FileKeySuite{
		SaltKey:       deriveKey(fileKey, derivFileSaltKey),
		MacKey:        deriveKey(fileKey, derivFileMacKey),
		EncryptionKey: deriveKey(fileKey, derivFileEncryptionKey),
	}
	fileKey.Zero()
	return suite, nil
}

// Zero wipes all three sub-keys.
func (s *FileKeySuite) Zero() {
	s.SaltKey.Zero()
	s.MacKey.Zero()
	s.EncryptionKey.Zero()
}
