package main

import (
	"os"

	"github.com/layer-3/scryptex/cmd/scryptex/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
