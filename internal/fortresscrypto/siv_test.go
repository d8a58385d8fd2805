// Copyright (c) 2025 Justin Cranford

package fortresscrypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	fortressFortresscrypto "fortress/internal/fortresscrypto"
)

func testNetworkKeySuite(t *testing.T) fortressFortresscrypto.NetworkKeySuite {
	t.Helper()
	master, err := fortressFortresscrypto.DeriveMasterKey([]byte("alice"), []byte("hunter2"), fortressFortresscrypto.DebugMasterKeyParams)
	require.NoError(t, err)
	return fortressFortresscrypto.DeriveNetworkKeySuite(master)
}

func TestNetworkEncrypt_IsDeterministic(t *testing.T) {
	t.Parallel()

	suite := testNetworkKeySuite(t)
	id := make([]byte, 32)
	for i := range id {
		id[i] = byte(i)
	}
	data := make([]byte, 1034)
	for i := range data {
		data[i] = byte(i * 3)
	}

	tag1, body1 := fortressFortresscrypto.NetworkEncrypt(suite, id, data)
	tag2, body2 := fortressFortresscrypto.NetworkEncrypt(suite, id, data)

	require.Equal(t, tag1, tag2)
	require.Equal(t, body1, body2)

	plaintext, tag, err := fortressFortresscrypto.NetworkDecrypt(suite, id, body1)
	require.NoError(t, err)
	require.Equal(t, data, plaintext)
	require.Equal(t, tag1, tag)
}

func TestNetworkEncrypt_DifferentAADOrDataChangesOutput(t *testing.T) {
	t.Parallel()

	suite := testNetworkKeySuite(t)
	id1 := make([]byte, 32)
	id2 := append([]byte{}, id1...)
	id2[0] = 1
	data := []byte("some plaintext payload")

	tag1, body1 := fortressFortresscrypto.NetworkEncrypt(suite, id1, data)
	tag2, body2 := fortressFortresscrypto.NetworkEncrypt(suite, id2, data)
	require.NotEqual(t, tag1, tag2)
	require.NotEqual(t, body1, body2)

	changed := append([]byte{}, data...)
	changed[len(changed)-1] ^= 1
	tag3, body3 := fortressFortresscrypto.NetworkEncrypt(suite, id1, changed)
	require.NotEqual(t, tag1, tag3)
	require.NotEqual(t, body1, body3)
}

func TestNetworkDecrypt_RejectsTamperedCiphertextOrSalt(t *testing.T) {
	t.Parallel()

	suite := testNetworkKeySuite(t)
	id := []byte("object-id")
	data := []byte("some plaintext payload")

	_, body := fortressFortresscrypto.NetworkEncrypt(suite, id, data)

	tamperedCiphertext := append([]byte{}, body...)
	tamperedCiphertext[40] ^= 1 // inside the ciphertext region, past the 32-byte salt
	_, _, err := fortressFortresscrypto.NetworkDecrypt(suite, id, tamperedCiphertext)
	require.ErrorIs(t, err, fortressFortresscrypto.ErrDecryption)

	tamperedSalt := append([]byte{}, body...)
	tamperedSalt[0] ^= 1
	_, _, err = fortressFortresscrypto.NetworkDecrypt(suite, id, tamperedSalt)
	require.ErrorIs(t, err, fortressFortresscrypto.ErrDecryption)
}

func TestNetworkDecrypt_RejectsWrongAAD(t *testing.T) {
	t.Parallel()

	suite := testNetworkKeySuite(t)
	id := []byte("object-id")
	badID := []byte("different-id")
	data := []byte("some plaintext payload")

	_, body := fortressFortresscrypto.NetworkEncrypt(suite, id, data)

	_, _, err := fortressFortresscrypto.NetworkDecrypt(suite, badID, body)
	require.ErrorIs(t, err, fortressFortresscrypto.ErrDecryption)
}

func TestNetworkDecrypt_RejectsTruncatedBody(t *testing.T) {
	t.Parallel()

	suite := testNetworkKeySuite(t)
	_, _, err := fortressFortresscrypto.NetworkDecrypt(suite, []byte("id"), make([]byte, 10))
	require.ErrorIs(t, err, fortressFortresscrypto.ErrTruncatedData)
}
