// Package main provides the circles command-line interface.
package main

import (
	"os"

	"github.com/Omashka/circles-sub001/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
