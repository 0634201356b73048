package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pzverkov/quantum-messenger/pkg/inbox"
	"github.com/pzverkov/quantum-messenger/pkg/metrics"
)

func runKeygen(env *cliEnv, asJSON bool) {
	kp, err := env.iface.GenerateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: key generation failed: %v\n", err)
		os.Exit(1)
	}
	defer kp.Zeroize()

	pub := kp.PublicKeys()

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(pub); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Mode:         %s\n", kp.Mode())
	fmt.Printf("Fingerprint:  %s\n", metrics.Fingerprint(pub.Bytes()))
	fmt.Printf("Public keys:  %d bytes\n", len(pub.Bytes()))
	fmt.Printf("First contact inbox:\n  %s\n", inbox.DeriveFirstContactInbox(pub.AddressKey()))
	fmt.Println("Identity:")
	for _, line := range wrap(pub.String(), 64) {
		fmt.Printf("  %s\n", line)
	}
}

func wrap(s string, width int) []string {
	var lines []string
	for len(s) > width {
		lines = append(lines, s[:width])
		s = s[width:]
	}
	if s != "" {
		lines = append(lines, s)
	}
	return lines
}
