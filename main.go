package main

import (
	"os"

	"github.com/jesspatton/watson/cli"
)

// main is the entry point of the application.
func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
