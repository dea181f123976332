// Package main provides the entry point for the ptts CLI.
package main

import (
	"os"

	"github.com/ptts-corpus/ptts/cmd/ptts/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
