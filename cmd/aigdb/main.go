package main

import (
	"os"

	"github.com/sprookie/aigdb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
