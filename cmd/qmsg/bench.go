package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pzverkov/quantum-messenger/internal/constants"
	"github.com/pzverkov/quantum-messenger/pkg/messaging"
	"github.com/pzverkov/quantum-messenger/pkg/metrics"
	"github.com/pzverkov/quantum-messenger/pkg/mode"
	"github.com/pzverkov/quantum-messenger/pkg/unified"
)

// benchResult collects the latencies of one operation in a histogram, in
// microseconds.
type benchResult struct {
	name   string
	hist   *metrics.Histogram
	failed int
}

func newBenchResult(name string, bounds []float64) *benchResult {
	return &benchResult{name: name, hist: metrics.NewHistogram(bounds)}
}

func runBench(iterations int, sizeStr, only string) {
	if iterations <= 0 {
		fmt.Fprintf(os.Stderr, "Error: iterations must be positive\n")
		os.Exit(1)
	}

	size := parseSize(sizeStr)
	if size <= 0 || size > constants.MaxBodySize {
		fmt.Fprintf(os.Stderr, "Error: message size must be between 1 B and %s\n", formatSize(constants.MaxBodySize))
		os.Exit(1)
	}

	modes := mode.All()
	if only != "" {
		m, err := mode.Parse(only)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		modes = []mode.Mode{m}
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║      Quantum-Safe Messenger Benchmark                    ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Iterations: %d  Message size: %s\n\n", iterations, formatSize(size))

	body := strings.Repeat("x", int(size))
	for _, m := range modes {
		benchMode(m, iterations, body)
	}
}

func benchMode(m mode.Mode, iterations int, body string) {
	fmt.Printf("Mode: %s\n", strings.ToUpper(m.String()))
	fmt.Println(strings.Repeat("─", 60))

	iface, err := unified.New(mode.NewConfig(m))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	keygen := newBenchResult("Key generation", metrics.KeyGenLatencyBuckets)
	create := newBenchResult("Create message", metrics.LatencyBuckets)
	decrypt := newBenchResult("Decrypt message", metrics.LatencyBuckets)

	var envelopeSize int
	for i := 0; i < iterations; i++ {
		start := time.Now()
		sender, err := iface.GenerateKeyPair()
		keygen.record(start, err)
		if err != nil {
			continue
		}
		recipient, err := iface.GenerateKeyPair()
		if err != nil {
			sender.Zeroize()
			continue
		}

		start = time.Now()
		env, err := messaging.CreateEncryptedMessage(ctx, iface, sender, recipient.PublicKeys(), body, uint64(i+1), "", nil)
		create.record(start, err)
		if err == nil {
			if data, err := env.ToJSON(); err == nil {
				envelopeSize = len(data)
			}

			start = time.Now()
			_, err = messaging.DecryptMessage(ctx, iface, env, recipient)
			decrypt.record(start, err)
		}

		sender.Zeroize()
		recipient.Zeroize()

		step := iterations / 10
		if step == 0 {
			step = 1
		}
		if (i+1)%step == 0 || i == iterations-1 {
			fmt.Printf("Progress: %d/%d (%.0f%%)\r", i+1, iterations, float64(i+1)/float64(iterations)*100)
		}
	}
	fmt.Println()

	for _, r := range []*benchResult{keygen, create, decrypt} {
		r.print()
	}
	if envelopeSize > 0 {
		fmt.Printf("  Envelope size: %s (%.1fx body)\n", formatSize(int64(envelopeSize)), float64(envelopeSize)/float64(len(body)))
	}
	fmt.Println()
}

func (r *benchResult) record(start time.Time, err error) {
	if err != nil {
		r.failed++
		return
	}
	r.hist.ObserveDuration(time.Since(start))
}

func micros(v float64) time.Duration {
	return time.Duration(v * float64(time.Microsecond)).Round(time.Microsecond)
}

func (r *benchResult) print() {
	s := r.hist.Summary()
	if s.Count == 0 {
		fmt.Printf("  %-16s all %d attempts failed\n", r.name+":", r.failed)
		return
	}

	fmt.Printf("  %-16s avg %-10v p50 %-10v p99 %-10v max %-10v %.1f ops/sec\n",
		r.name+":", micros(s.Mean), micros(s.P(0.5)), micros(s.P(0.99)), micros(s.Max), 1e6/s.Mean)
	if r.failed > 0 {
		fmt.Printf("  %-16s %d failed\n", "", r.failed)
	}
}

// parseSize reads sizes such as "256", "256B", "4KB" or "1M".
func parseSize(s string) int64 {
	var value int64
	var unit string
	_, _ = fmt.Sscanf(s, "%d%s", &value, &unit)

	switch unit {
	case "KB", "kb", "K", "k":
		return value * 1024
	case "MB", "mb", "M", "m":
		return value * 1024 * 1024
	default:
		return value
	}
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.2f %s", float64(bytes)/float64(div), units[exp])
}
