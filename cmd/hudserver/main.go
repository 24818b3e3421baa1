// Package main is the entry point for the hudserver binary.
//
// Usage:
//
//	hudserver serve --config hud.yaml
//	hudserver version
package main

import (
	"fmt"
	"os"

	"github.com/hudwear/hudserver/cmd/hudserver/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
