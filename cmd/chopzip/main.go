// Package main provides the chopzip CLI for compressing and decompressing
// large files in parallel chunks.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
