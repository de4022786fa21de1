// Package main provides the entry point for the searchctl admin CLI.
package main

import (
	"os"

	"github.com/utafrali/contentsearch/cmd/searchctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
