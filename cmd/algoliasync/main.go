// Package main provides the entry point for the algoliasync CLI.
package main

import (
	"os"

	"github.com/Mill3/1ou2cocktails-algolia-sync/cmd/algoliasync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
