// Package main is the entry point for the conversa CLI.
package main

import (
	"os"

	"github.com/conversa-ai/conversa/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
