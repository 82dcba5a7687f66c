package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"basegraph.app/storepilot/tools/linters/enumvalidator"
)

func main() {
	singlechecker.Main(enumvalidator.Analyzer)
}
