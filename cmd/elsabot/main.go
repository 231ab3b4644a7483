// Package main is the entry point for the elsabot dialog engine CLI.
//
// Usage:
//
//	elsabot [flags] <command> [args]
//
// Commands:
//
//	index     - Load a conversation script and build the persistent catalog
//	interact  - Talk to the bot in the terminal
//	serve     - Run the HTTP/WebSocket dialog server
package main

import (
	"fmt"
	"os"

	"github.com/elsabot/elsabot/cmd/elsabot/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
