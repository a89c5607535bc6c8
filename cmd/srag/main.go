// Package main provides the entry point for the srag CLI.
package main

import (
	"os"

	"github.com/srag-go/srag/cmd/srag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
