//go:build !testcoverage

package main

import (
	"fmt"
	"os"
)

func main() {
	if err := run(os.Args, DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "ksm: %v\n", err)
		os.Exit(1)
	}
}
