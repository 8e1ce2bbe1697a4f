// Package main is the entry point for the testbench CLI.
package main

import (
	"os"

	"github.com/jj-shen99/testbench/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
