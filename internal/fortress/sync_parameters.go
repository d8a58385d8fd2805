// Copyright (c) 2025 Justin Cranford

package fortress

import (
	"fmt"

	json "github.com/goccy/go-json"

	fortresscrypto "fortress/internal/fortresscrypto"
)

// SyncParameters encapsulates username, MasterKey, and every value derived
// from them, so those invariants can only be violated atomically via a
// password change (§3, §4.2).
type SyncParameters struct {
	username  string
	masterKey fortresscrypto.MasterKey

	// Cached, not persisted directly — recomputed on load from username
	// and masterKey.
	networkKeySuite fortresscrypto.NetworkKeySuite
	loginKey        fortresscrypto.LoginKey
	loginID         fortresscrypto.Tag
}

// NewSyncParameters derives MasterKey (slow) and every cached value from
// username and password.
func NewSyncParameters(username, password string, params fortresscrypto.MasterKeyParams) (SyncParameters, error) {
	masterKey, err := fortresscrypto.DeriveMasterKey([]byte(username), []byte(password), params)
	if err != nil {
		return SyncParameters{}, err
	}
	return syncParametersFromMasterKey(username, masterKey), nil
}

func syncParametersFromMasterKey(username string, masterKey fortresscrypto.MasterKey) SyncParameters {
	return SyncParameters{
		username:        username,
		masterKey:       masterKey,
		networkKeySuite: fortresscrypto.DeriveNetworkKeySuite(masterKey),
		loginKey:        fortresscrypto.DeriveLoginKey(masterKey),
		loginID:         fortresscrypto.HashUsernameForLogin([]byte(username)),
	}
}

// Username returns the plaintext username.
func (p SyncParameters) Username() string { return p.username }

// MasterKey returns the root derived key. Never transmitted over the
// network (§4.2, glossary).
func (p SyncParameters) MasterKey() fortresscrypto.MasterKey { return p.masterKey }

// NetworkKeySuite returns the cached network sub-keys.
func (p SyncParameters) NetworkKeySuite() fortresscrypto.NetworkKeySuite { return p.networkKeySuite }

// LoginKey returns the cached bearer credential.
func (p SyncParameters) LoginKey() fortresscrypto.LoginKey { return p.loginKey }

// LoginID returns the cached, unlinkable-to-username server identifier.
func (p SyncParameters) LoginID() fortresscrypto.Tag { return p.loginID }

type syncParametersWire struct {
	Username  string `json:"username"`
	MasterKey string `json:"master_key"`
}

// MarshalJSON implements json.Marshaler. Only username and master_key are
// persisted; the cached fields are recomputed on load (§3).
func (p SyncParameters) MarshalJSON() ([]byte, error) {
	return json.Marshal(syncParametersWire{Username: p.username, MasterKey: p.masterKey.Hex()})
}

// UnmarshalJSON implements json.Unmarshaler, recomputing every cached
// field from the persisted username and master_key.
func (p *SyncParameters) UnmarshalJSON(data []byte) error {
	var wire syncParametersWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	masterKey, err := fortresscrypto.MasterKeyFromHex(wire.MasterKey)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	*p = syncParametersFromMasterKey(wire.Username, masterKey)
	return nil
}
