// Copyright (c) 2025 Justin Cranford

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	fortresscrypto "fortress/internal/fortresscrypto"
)

func newDecryptCommand(dataDir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrypt <path>",
		Short: "Decrypt a file through the file codec",
		Long: `Decrypt reads a passphrase from stdin (first line), then reads the
encrypted file at <path> and streams the decrypted plaintext to stdout.

Example:
  echo "hunter2" | fortress --dir ~/.fortress decrypt vault.fortress > vault.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassphrase(cmd.InOrStdin())
			if err != nil {
				return err
			}

			path := resolvePath(*dataDir, args[0])
			encoded, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("fortress: read %s: %w", path, err)
			}

			plaintext, _, _, err := fortresscrypto.DecryptFromFile(encoded, []byte(password))
			if err != nil {
				return fmt.Errorf("fortress: decrypt: %w", err)
			}

			if _, err := cmd.OutOrStdout().Write(plaintext); err != nil {
				return fmt.Errorf("fortress: write output: %w", err)
			}
			return nil
		},
	}

	return cmd
}
