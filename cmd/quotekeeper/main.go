package main

import (
	"os"

	"github.com/solatis/quotekeeper/cmd/quotekeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
