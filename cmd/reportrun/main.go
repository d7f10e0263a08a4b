package main

import (
	"os"

	"github.com/Backland-Labs/reportrun/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
