// Package main is the storepilot command line.
package main

import (
	"os"

	"basegraph.app/storepilot/cmd/storepilot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
