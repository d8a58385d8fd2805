// Copyright (c) 2025 Justin Cranford

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_RoundTripThroughCLI(t *testing.T) {
	dir := t.TempDir()
	plainPath := filepath.Join(dir, "vault.json")
	require.NoError(t, os.WriteFile(plainPath, []byte(`{"hello":"world"}`), 0o600))

	encryptCmd := newEncryptCommand(&dir)
	encryptCmd.SetArgs([]string{"vault.json", "--debug-params"})
	encryptCmd.SetIn(bytes.NewBufferString("correct horse battery staple\n"))
	var encrypted bytes.Buffer
	encryptCmd.SetOut(&encrypted)
	require.NoError(t, encryptCmd.Execute())
	require.NotEmpty(t, encrypted.Bytes())

	cipherPath := filepath.Join(dir, "vault.fortress")
	require.NoError(t, os.WriteFile(cipherPath, encrypted.Bytes(), 0o600))

	decryptCmd := newDecryptCommand(&dir)
	decryptCmd.SetArgs([]string{"vault.fortress"})
	decryptCmd.SetIn(bytes.NewBufferString("correct horse battery staple\n"))
	var decrypted bytes.Buffer
	decryptCmd.SetOut(&decrypted)
	require.NoError(t, decryptCmd.Execute())

	require.Equal(t, `{"hello":"world"}`, decrypted.String())
}

func TestDecrypt_WrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()
	plainPath := filepath.Join(dir, "vault.json")
	require.NoError(t, os.WriteFile(plainPath, []byte(`{"a":1}`), 0o600))

	encryptCmd := newEncryptCommand(&dir)
	encryptCmd.SetArgs([]string{"vault.json", "--debug-params"})
	encryptCmd.SetIn(bytes.NewBufferString("right-password\n"))
	var encrypted bytes.Buffer
	encryptCmd.SetOut(&encrypted)
	require.NoError(t, encryptCmd.Execute())

	cipherPath := filepath.Join(dir, "vault.fortress")
	require.NoError(t, os.WriteFile(cipherPath, encrypted.Bytes(), 0o600))

	decryptCmd := newDecryptCommand(&dir)
	decryptCmd.SetArgs([]string{"vault.fortress"})
	decryptCmd.SetIn(bytes.NewBufferString("wrong-password\n"))
	decryptCmd.SetOut(&bytes.Buffer{})
	require.Error(t, decryptCmd.Execute())
}

func TestReadPassphrase_RejectsEmptyLine(t *testing.T) {
	_, err := readPassphrase(bytes.NewBufferString("\n"))
	require.Error(t, err)
}
