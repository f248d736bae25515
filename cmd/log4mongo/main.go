package main

import (
	"os"

	"github.com/log4mongo/log4mongo-go/cmd/log4mongo/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
