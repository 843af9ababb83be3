package main

import (
	"fmt"
	"os"

	"flowcast-mcp/cmd/flowcast-mcp/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
