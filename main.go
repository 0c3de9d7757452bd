package main

import (
	"os"

	"github.com/pthm-cable/multiverse/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
