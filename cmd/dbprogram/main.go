// Package main provides the dbprogram CLI for resolving and running
// configured stored programs.
package main

import (
	"fmt"
	"os"
)

func main() {
	err := newRootCmd().Execute()
	if cerr := shutdown(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
