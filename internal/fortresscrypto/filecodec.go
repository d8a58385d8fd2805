// Copyright (c) 2025 Justin Cranford

package fortresscrypto

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// fileMagic is the literal 10-byte format tag. Only this version is
// accepted; any other value fails with ErrUnsupportedVersion (§4.3).
var fileMagic = [10]byte{'f', 'o', 'r', 't', 'r', 'e', 's', 's', '2', 0}

const (
	headerFixedLen  = 10 + 1 + 4 + 4 + 32 // magic, log_n, r, p, salt
	sivLen          = 32
	macLen          = 32
	checksumLen     = 32
	minFileLen      = headerFixedLen + sivLen + macLen + checksumLen
)

// buildHeader renders the 51-byte fixed header (§6): magic, log_n, r (LE32),
// p (LE32), 32-byte scrypt salt.
func buildHeader(params FileEncryptionParams) []byte {
	header := make([]byte, 0, headerFixedLen)
	header = append(header, fileMagic[:]...)
	header = append(header, params.LogN)
	header = binary.LittleEndian.AppendUint32(header, params.R)
	header = binary.LittleEndian.AppendUint32(header, params.P)
	header = append(header, params.Salt[:]...)
	return header
}

// parseHeader reads the fixed header off the front of data and returns the
// parsed parameters plus the remaining bytes (siv‖ciphertext‖mac‖checksum).
func parseHeader(data []byte) (FileEncryptionParams, []byte, error) {
	if len(data) < headerFixedLen {
		return FileEncryptionParams{}, nil, ErrTruncatedData
	}
	if !bytes.Equal(data[:10], fileMagic[:]) {
		return FileEncryptionParams{}, nil, ErrUnsupportedVersion
	}
	var params FileEncryptionParams
	params.LogN = data[10]
	params.R = binary.LittleEndian.Uint32(data[11:15])
	params.P = binary.LittleEndian.Uint32(data[15:19])
	copy(params.Salt[:], data[19:51])
	return params, data[headerFixedLen:], nil
}

// EncryptToFile serializes payload into the on-disk format: header ‖
// deterministic-ciphertext ‖ outer checksum (§4.3, §6).
func EncryptToFile(payload []byte, params FileEncryptionParams, suite FileKeySuite) ([]byte, error) {
	header := buildHeader(params)

	siv, ciphertext := deterministicEncryptFile(payload, suite)
	mac := fileMAC(suite.MacKey, nil, siv, ciphertext)

	body := make([]byte, 0, len(header)+len(siv)+len(ciphertext)+len(mac)+checksumLen)
	body = append(body, header...)
	body = append(body, siv[:]...)
	body = append(body, ciphertext...)
	body = append(body, mac[:]...)

	checksum := sha256.Sum256(body)
	body = append(body, checksum[:]...)
	return body, nil
}

// DecryptFromFile parses a file produced by EncryptToFile and verifies the
// outer checksum before deriving the FileKeySuite from password and the
// header's parameters; it then verifies the inner MAC before decrypting.
// Returns the decrypted payload, the parsed parameters, and the key suite
// so the caller can cache it (§4.3).
func DecryptFromFile(data []byte, password []byte) ([]byte, FileEncryptionParams, FileKeySuite, error) {
	if len(data) < minFileLen {
		return nil, FileEncryptionParams{}, FileKeySuite{}, ErrTruncatedData
	}

	checksummed := data[:len(data)-checksumLen]
	wantChecksum := data[len(data)-checksumLen:]
	gotChecksum := sha256.Sum256(checksummed)
	if !hmac.Equal(gotChecksum[:], wantChecksum) {
		return nil, FileEncryptionParams{}, FileKeySuite{}, ErrBadChecksum
	}

	params, rest, err := parseHeader(checksummed)
	if err != nil {
		return nil, FileEncryptionParams{}, FileKeySuite{}, err
	}

	suite, err := DeriveFileKeySuite(password, params)
	if err != nil {
		return nil, FileEncryptionParams{}, FileKeySuite{}, err
	}

	plaintext, err := decryptFilePayload(rest, suite)
	if err != nil {
		return nil, FileEncryptionParams{}, FileKeySuite{}, err
	}
	return plaintext, params, suite, nil
}

// deterministicEncryptFile implements the file-record variant of §4.3's
// deterministic encryption: aad is always empty for file records.
func deterministicEncryptFile(plaintext []byte, suite FileKeySuite) (Tag, []byte) {
	return deterministicEncrypt(nil, plaintext, suite.SaltKey, suite.MacKey, suite.EncryptionKey)
}

func decryptFilePayload(rest []byte, suite FileKeySuite) ([]byte, error) {
	if len(rest) < sivLen+macLen {
		return nil, ErrTruncatedData
	}
	siv, ciphertext, mac := rest[:sivLen], rest[sivLen:len(rest)-macLen], rest[len(rest)-macLen:]

	sivTag, _ := TagFromSlice(siv)
	wantMAC := fileMAC(suite.MacKey, nil, sivTag, ciphertext)
	if !hmac.Equal(wantMAC[:], mac) {
		return nil, ErrDecryption
	}

	return chacha20XOR(deriveDeterministicEncryptionKey(suite.EncryptionKey, sivTag), ciphertext)
}

// fileMAC computes HMAC(mac_key, aad ‖ siv ‖ ciphertext), matching the
// "hmac (file-mac-key over empty_aad ‖ siv ‖ ciphertext)" field in §6.
func fileMAC(macKey SecretKey, aad []byte, siv Tag, ciphertext []byte) Tag {
	mac := hmac.New(sha256.New, macKey[:])
	mac.Write(aad)
	mac.Write(siv[:])
	mac.Write(ciphertext)
	t, _ := TagFromSlice(mac.Sum(nil))
	return t
}

// deterministicEncrypt is the shared core of §4.3 steps 1-3, reused by both
// the file codec (aad=nil) and any caller needing salt-based deterministic
// encryption: salt=HMAC(salt_key,P), k'=HMAC(encryption_key,salt),
// C=ChaCha20(k',zero-nonce) XOR P. It returns (salt, C); step 4,
// mac=HMAC(mac_key, aad‖salt‖C), is computed separately by fileMAC.
func deterministicEncrypt(aad, plaintext []byte, saltKey, macKey, encryptionKey SecretKey) (Tag, []byte) {
	saltMAC := hmac.New(sha256.New, saltKey[:])
	saltMAC.Write(plaintext)
	siv, _ := TagFromSlice(saltMAC.Sum(nil))

	key := deriveDeterministicEncryptionKey(encryptionKey, siv)
	ciphertext, err := chacha20XOR(key, plaintext)
	if err != nil {
		// chacha20.NewUnauthenticatedCipher only fails on malformed
		// key/nonce lengths, which deriveDeterministicEncryptionKey
		// never produces.
		panic(fmt.Sprintf("fortresscrypto: unreachable chacha20 error: %v", err))
	}
	return siv, ciphertext
}

func deriveDeterministicEncryptionKey(encryptionKey SecretKey, salt Tag) SecretKey {
	mac := hmac.New(sha256.New, encryptionKey[:])
	mac.Write(salt[:])
	k, _ := SecretKeyFromSlice(mac.Sum(nil))
	return k
}

// chacha20XOR applies ChaCha20 keystream generated from an all-zero nonce.
// The file codec's 8-byte nonce and the standard IETF 12-byte nonce produce
// an identical keystream when the nonce is all zero (the counter starts at
// 0 either way), so golang.org/x/crypto/chacha20's IETF cipher reproduces
// the historical 8-byte-nonce variant exactly.
func chacha20XOR(key SecretKey, data []byte) ([]byte, error) {
	var nonce [chacha20.NonceSize]byte
	cipher, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return nil, fmt.Errorf("fortresscrypto: new chacha20 cipher: %w", err)
	}
	out := make([]byte, len(data))
	cipher.XORKeyStream(out, data)
	return out, nil
}
