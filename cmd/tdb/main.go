package main

import (
	"os"

	"github.com/tracekit/tdb/cmd/tdb/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
