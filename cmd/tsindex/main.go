package main

import (
	"fmt"
	"os"

	"github.com/runnerr0/tsindex/internal/cli"
)

var version = "1.0.0"

func main() {
	if err := cli.Run(version); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
