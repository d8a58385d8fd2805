// Copyright (c) 2025 Justin Cranford

// Package main is the entry point for the fortress CLI.
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
