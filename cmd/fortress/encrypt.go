// Copyright (c) 2025 Justin Cranford

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/shirou/gopsutil/mem"
	"github.com/spf13/cobra"

	fortresscrypto "fortress/internal/fortresscrypto"
)

// estimatedReleaseScryptMemory is Scrypt's memory requirement under
// release-cost parameters (LogN=18, r=8): 128*N*r bytes, i.e. 128 * 2^18 *
// 8. A machine with less available memory than this will thrash or get
// OOM-killed partway through key derivation rather than failing fast.
const estimatedReleaseScryptMemory = 128 * (1 << 18) * 8

// checkScryptMemory warns (but does not block) when available memory looks
// too tight for release-cost Scrypt. gopsutil's reading is a snapshot, not
// a reservation, so a concurrently started process could still starve us;
// this is a best-effort early warning, not a guarantee.
func checkScryptMemory(w io.Writer) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	if vm.Available < estimatedReleaseScryptMemory {
		fmt.Fprintf(w, "fortress: warning: only %d MiB available, release-cost key derivation needs ~%d MiB and may be slow or fail\n",
			vm.Available/(1<<20), estimatedReleaseScryptMemory/(1<<20))
	}
}

func newEncryptCommand(dataDir *string) *cobra.Command {
	var debugParams bool

	cmd := &cobra.Command{
		Use:   "encrypt <path>",
		Short: "Encrypt a file through the file codec",
		Long: `Encrypt reads a passphrase from stdin (first line), then reads the
plaintext at <path> and streams the encrypted file codec output to stdout.

Example:
  echo "hunter2" | fortress --dir ~/.fortress encrypt vault.json > vault.fortress`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassphrase(cmd.InOrStdin())
			if err != nil {
				return err
			}

			path := resolvePath(*dataDir, args[0])
			plaintext, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("fortress: read %s: %w", path, err)
			}

			if !debugParams {
				checkScryptMemory(cmd.ErrOrStderr())
			}
			params, err := newFileEncryptionParams(debugParams)
			if err != nil {
				return err
			}
			suite, err := fortresscrypto.DeriveFileKeySuite([]byte(password), params)
			if err != nil {
				return fmt.Errorf("fortress: derive file key: %w", err)
			}

			encoded, err := fortresscrypto.EncryptToFile(plaintext, params, suite)
			if err != nil {
				return fmt.Errorf("fortress: encrypt: %w", err)
			}

			if _, err := cmd.OutOrStdout().Write(encoded); err != nil {
				return fmt.Errorf("fortress: write output: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&debugParams, "debug-params", false, "Use cheap debug-cost Scrypt parameters instead of release cost")

	return cmd
}

func newFileEncryptionParams(debug bool) (fortresscrypto.FileEncryptionParams, error) {
	if debug {
		return fortresscrypto.NewDebugFileEncryptionParams()
	}
	return fortresscrypto.NewReleaseFileEncryptionParams()
}

// readPassphrase reads a single line from r, trimming the trailing newline.
// Stdin is read with bufio rather than fmt.Fscanln so the passphrase may
// contain spaces.
func readPassphrase(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("fortress: read passphrase: %w", err)
	}
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	if line == "" {
		return "", fmt.Errorf("fortress: empty passphrase")
	}
	return line, nil
}
