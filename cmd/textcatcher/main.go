package main

import (
	"os"

	"github.com/jarredhawkins/textcatcher/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
