package main

import (
	"os"

	"github.com/agentkernel/society/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
