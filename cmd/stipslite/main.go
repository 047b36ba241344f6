package main

import (
	"os"

	"github.com/sfaret/stipslite/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
