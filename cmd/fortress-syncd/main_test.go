// Copyright (c) 2025 Justin Cranford

package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSyncdCommand_DefaultFlags(t *testing.T) {
	cmd := newSyncdCommand()
	listen, err := cmd.Flags().GetString("listen")
	require.NoError(t, err)
	require.Empty(t, listen)

	verbose, err := cmd.Flags().GetBool("verbose")
	require.NoError(t, err)
	require.False(t, verbose)
}
