package main

import (
	"os"

	"github.com/solatis/condfields/cmd/condfields/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
