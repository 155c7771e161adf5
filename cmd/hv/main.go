package main

import (
	"os"

	"hybridvault/cmd/hv/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
