package main

import (
	// Embedded zone database for --timezone on hosts without one.
	_ "time/tzdata"

	"github.com/zhaobenny/ccsessions/cli/internal/commands"
)

const version = "0.3.0"

func main() {
	commands.Version = version
	commands.Execute()
}
