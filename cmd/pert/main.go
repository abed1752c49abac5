package main

import (
	"os"

	"github.com/cleberrangel/linear-pert-api/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
