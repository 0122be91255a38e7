// Package main provides the entry point for the tide-charts stats backend.
package main

import (
	"fmt"
	"os"

	_ "shrimp/docs" // Import swagger docs
	"shrimp/internal/command"
)

var Version = "dev"

func main() {
	if err := command.NewTideChartsCmd(Version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
