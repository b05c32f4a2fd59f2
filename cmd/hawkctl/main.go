package main

import (
	"os"

	"github.com/hunthawk-systems/hunthawk/internal/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
