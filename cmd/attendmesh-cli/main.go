// Package main provides the entry point for attendmesh-cli.
//
// attendmesh-cli drives the attendance API from a terminal, in one-shot
// mode or as an interactive shell, and can hold an attendance open with
// "watch".
package main

import (
	"os"

	"github.com/yndnr/attendmesh/internal/cli/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		command.PrintError("%v", err)
		os.Exit(1)
	}
}
