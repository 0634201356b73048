package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pzverkov/quantum-messenger/pkg/crypto"
)

func runSelftest(verbose bool) {
	fmt.Println("Running power-on self-tests...")
	fmt.Println(strings.Repeat("─", 60))

	result := crypto.RunPOST()
	for _, t := range result.Tests {
		switch {
		case t.Passed && verbose:
			fmt.Printf("  ✓ %s\n", t.Name)
		case !t.Passed:
			fmt.Printf("  ✗ %s: %v\n", t.Name, t.Err)
		}
	}

	if !result.Passed {
		fmt.Printf("\n✗ %d of %d self-tests failed\n", len(result.Errors), len(result.Tests))
		os.Exit(1)
	}
	fmt.Printf("\n✓ All %d self-tests passed\n", len(result.Tests))
}
