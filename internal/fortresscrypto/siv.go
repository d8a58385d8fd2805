// Copyright (c) 2025 Justin Cranford

package fortresscrypto

import "crypto/hmac"

// NetworkEncrypt implements §4.4's Encrypt(aad, P): the same deterministic
// encryption scheme §4.3 defines for on-disk files (salt=HMAC(salt_key,P),
// k'=HMAC(encryption_key,salt), C=ChaCha20(k',zero-nonce) XOR P,
// mac=HMAC(mac_key,aad‖salt‖C)), parameterized by NetworkKeySuite with
// aad = the object's id. The id is authenticated but never encrypted, so
// the server cannot swap ciphertext between objects undetected.
//
// The mac doubles as the object's server-visible version tag: equal
// plaintext under equal keys and aad always produces the same mac, so the
// server can use it to detect changes without ever seeing plaintext. The
// returned body (salt ‖ ciphertext ‖ mac) is the complete wire payload a
// caller stores or transmits.
func NetworkEncrypt(suite NetworkKeySuite, aad, plaintext []byte) (Tag, []byte) {
	salt, ciphertext := deterministicEncrypt(aad, plaintext, suite.SaltKey, suite.MacKey, suite.EncryptionKey)
	tag := fileMAC(suite.MacKey, aad, salt, ciphertext)

	body := make([]byte, 0, sivLen+len(ciphertext)+macLen)
	body = append(body, salt[:]...)
	body = append(body, ciphertext...)
	body = append(body, tag[:]...)
	return tag, body
}

// NetworkDecrypt implements §4.4's Decrypt(aad, body): validates the
// trailing mac before deriving the salted key and decrypting, so tampered
// ciphertext, salt, or aad is rejected before any plaintext is produced.
// Returns the verified tag alongside the plaintext so callers that already
// hold an expected tag (e.g. from the object listing) can cross-check it.
func NetworkDecrypt(suite NetworkKeySuite, aad []byte, body []byte) ([]byte, Tag, error) {
	if len(body) < sivLen+macLen {
		return nil, Tag{}, ErrTruncatedData
	}
	salt, ciphertext, mac := body[:sivLen], body[sivLen:len(body)-macLen], body[len(body)-macLen:]

	saltTag, _ := TagFromSlice(salt)
	wantMAC := fileMAC(suite.MacKey, aad, saltTag, ciphertext)
	if !hmac.Equal(wantMAC[:], mac) {
		return nil, Tag{}, ErrDecryption
	}

	plaintext, err := chacha20XOR(deriveDeterministicEncryptionKey(suite.EncryptionKey, saltTag), ciphertext)
	if err != nil {
		return nil, Tag{}, err
	}
	return plaintext, wantMAC, nil
}
