// Package main provides the entry point for the giai CLI.
package main

import (
	"os"

	"github.com/giai-dev/giai/cmd/giai/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
