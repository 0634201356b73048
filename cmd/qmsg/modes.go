package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pzverkov/quantum-messenger/pkg/mode"
	"github.com/pzverkov/quantum-messenger/pkg/unified"
)

func runModes(asJSON, quantumThreat, performanceCritical bool) {
	recommended := mode.RecommendedForThreatModel(quantumThreat, performanceCritical)

	if asJSON {
		infos := make([]unified.PerformanceInfo, 0, len(mode.All()))
		for _, m := range mode.All() {
			infos = append(infos, unified.PerformanceInfoFor(m))
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Modes       []unified.PerformanceInfo `json:"modes"`
			Recommended mode.Mode                 `json:"recommended"`
		}{infos, recommended}); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	for _, m := range mode.All() {
		info := unified.PerformanceInfoFor(m)
		marker := " "
		if m == recommended {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, strings.ToUpper(m.String()))
		fmt.Printf("    %s\n", info.Description)
		fmt.Printf("    Security:        %s\n", m.SecurityDescription())
		fmt.Printf("    Relative cost:   %.1fx\n", info.PerformanceCost)
		fmt.Printf("    Size overhead:   %d bytes\n", info.SizeOverhead)
		fmt.Printf("    Quantum-safe:    %v\n", info.QuantumResistant)
		fmt.Println()
	}

	fmt.Println("Compatibility (message mode → recipient key):")
	fmt.Printf("    %-10s", "")
	for _, r := range mode.All() {
		fmt.Printf(" %-22s", r)
	}
	fmt.Println()
	for _, msg := range mode.All() {
		fmt.Printf("    %-10s", msg)
		for _, r := range mode.All() {
			route, ok := mode.Compatible(msg, r)
			cell := "✗"
			if ok {
				cell = route.String()
			}
			fmt.Printf(" %-22s", cell)
		}
		fmt.Println()
	}
	fmt.Println()
	fmt.Printf("* recommended for this threat model: %s\n", recommended)
}
