// Package main implements the tasktrack server binary: an HTTP API for
// tracking tasks through their lifecycle, with background processing.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
