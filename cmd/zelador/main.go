// Package main is the entry point for the zelador CLI.
package main

import (
	"os"

	"github.com/zeladorbot/zelador/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
