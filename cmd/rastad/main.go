// Command rastad is a demonstration host for the RaSTA SafRetL core: it
// loads a network configuration, wires two in-memory stacks together
// over a loopback redundancy channel, and drives the client-side
// connection establishment and data exchange described in the
// protocol's example scenarios.
//
// Grounded on marmos91-dittofs/cmd/dittofs's cobra command tree
// (main.go delegating straight to commands.Execute).
package main

import (
	"fmt"
	"os"

	"github.com/SchweizerischeBundesbahnen/sbb-rasta-stack-sub000/cmd/rastad/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
