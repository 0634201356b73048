package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/pzverkov/quantum-messenger/pkg/protocol"
	pkgversion "github.com/pzverkov/quantum-messenger/pkg/version"
)

// Build-time variables (set via -ldflags)
var (
	version   = ""        // Set via -ldflags "-X main.version=x.y.z"
	buildTime = "unknown" // Set via -ldflags "-X main.buildTime=..."
	gitCommit = "unknown" // Set via -ldflags "-X main.gitCommit=..."
)

func getVersion() string {
	if version != "" {
		return version
	}
	return pkgversion.String()
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	loadEnvFile()

	command := os.Args[1]

	switch command {
	case "keygen":
		keygenCommand()
	case "demo":
		demoCommand()
	case "selftest":
		selftestCommand()
	case "modes":
		modesCommand()
	case "bench":
		benchCommand()
	case "version":
		fmt.Printf("qmsg version %s\n", getVersion())
		fmt.Printf("Protocol: %s (%s)\n", protocol.Current, protocol.ProtocolID)
		fmt.Println(pkgversion.Full())
		if buildTime != "unknown" {
			fmt.Printf("Built: %s\n", buildTime)
		}
		commit := gitCommit
		if commit == "unknown" {
			commit = pkgversion.Revision()
		}
		if commit != "unknown" {
			fmt.Printf("Commit: %s\n", commit)
		}
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`qmsg - Quantum-Safe Messenger Crypto Demo & Benchmark Tool

USAGE:
    qmsg <command> [options]

COMMANDS:
    keygen    Generate a key pair and print its public identity
    demo      Send messages between two local users through a local relay
    selftest  Run the cryptographic power-on self-tests
    modes     Describe the crypto modes and their trade-offs
    bench     Run key generation and message benchmarks per mode
    version   Print version information
    help      Show this help message

Run 'qmsg <command> --help' for more information on a command.

ENVIRONMENT:
    QMSG_MODE       Default for --mode
    QMSG_LOG_LEVEL  Default for --log-level
    QMSG_ENV_FILE   File of KEY=value defaults to load (default: .env)

EXAMPLES:
    # Generate a hybrid identity
    qmsg keygen --mode hybrid

    # Run the demo with a relay that only admits hybrid or stronger
    qmsg demo --mode hybrid --min-mode hybrid

    # Expose metrics while the demo runs
    qmsg demo --metrics-addr :9090 --rounds 100

    # Benchmark all modes
    qmsg bench --iterations 50

PROJECT:
    Quantum Messenger - crypto-agility core
    Security: X25519/Ed25519 (classical), ML-KEM-768/ML-DSA-65 (post-quantum)
    Hybrid: combined secret, both signatures must verify`)
}

// commonFlags are the observability and policy flags shared by commands.
type commonFlags struct {
	mode        *string
	minMode     *string
	logLevel    *string
	logFormat   *string
	tracing     *string
	metricsAddr *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		mode:        fs.String("mode", envOr("QMSG_MODE", "classical"), "Crypto mode: classical, hybrid, quantum"),
		minMode:     fs.String("min-mode", "classical", "Weakest crypto mode accepted on incoming messages"),
		logLevel:    fs.String("log-level", envOr("QMSG_LOG_LEVEL", "warn"), "Log level: debug, info, warn, error, silent"),
		logFormat:   fs.String("log-format", "text", "Log format: text or json"),
		tracing:     fs.String("tracing", "none", "Tracing mode: none, simple, otel"),
		metricsAddr: fs.String("metrics-addr", "", "Observability server address. Empty disables"),
	}
}

// loadEnvFile loads QMSG_ENV_FILE, or .env if present. Variables already set
// in the environment win.
func loadEnvFile() {
	path := os.Getenv("QMSG_ENV_FILE")
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", path, err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func keygenCommand() {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	common := addCommonFlags(fs)
	asJSON := fs.Bool("json", false, "Print the public keys as JSON")

	fs.Usage = func() {
		fmt.Println(`USAGE: qmsg keygen [options]

Generate a key pair in the configured mode and print its public identity,
its first-contact inbox, and its key sizes. Private keys are never printed.

OPTIONS:`)
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[2:])

	env := mustSetup(common)
	runKeygen(env, *asJSON)
}

func demoCommand() {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	common := addCommonFlags(fs)
	peerMode := fs.String("peer-mode", "", "Crypto mode of the second user (default: --mode)")
	message := fs.String("message", "Hello from qmsg!", "Message body")
	rounds := fs.Int("rounds", 3, "Number of messages to exchange in each direction")
	verbose := fs.Bool("verbose", false, "Verbose output")
	relayDB := fs.String("relay-db", envOr("QMSG_RELAY_DB", ""), "bbolt file for relay mailboxes. Empty keeps them in memory")

	fs.Usage = func() {
		fmt.Println(`USAGE: qmsg demo [options]

Run two local users, Alice and Bob, who publish username claims to a
local relay, look each other up, and exchange encrypted messages through
per-conversation inboxes. Relay mailboxes are kept in memory unless
--relay-db names a bbolt file.

OPTIONS:`)
		fs.PrintDefaults()
		fmt.Println(`
EXAMPLES:
    # Hybrid sender, classical recipient
    qmsg demo --mode hybrid --peer-mode classical

    # Classical peer under a hybrid floor: its sends are refused
    qmsg demo --mode hybrid --peer-mode classical --min-mode hybrid --verbose

    # Keep relay mailboxes between runs
    qmsg demo --relay-db relay.db`)
	}

	_ = fs.Parse(os.Args[2:])

	env := mustSetup(common)
	runDemo(env, demoOptions{
		peerMode: *peerMode,
		message:  *message,
		rounds:   *rounds,
		verbose:  *verbose,
		relayDB:  *relayDB,
	})
}

func selftestCommand() {
	fs := flag.NewFlagSet("selftest", flag.ExitOnError)
	verbose := fs.Bool("verbose", false, "Show each test")

	fs.Usage = func() {
		fmt.Println(`USAGE: qmsg selftest [options]

Run the known-answer and pairwise-consistency tests of every primitive.
Exits non-zero if any test fails.

OPTIONS:`)
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[2:])

	runSelftest(*verbose)
}

func modesCommand() {
	fs := flag.NewFlagSet("modes", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "Print as JSON")
	quantumThreat := fs.Bool("quantum-threat", false, "Recommend for an adversary with a future quantum computer")
	performance := fs.Bool("performance-critical", false, "Recommend for constrained devices")

	fs.Usage = func() {
		fmt.Println(`USAGE: qmsg modes [options]

Describe each crypto mode: security level, relative cost, size overhead,
and which modes can exchange messages.

OPTIONS:`)
		fs.PrintDefaults()
	}

	_ = fs.Parse(os.Args[2:])

	runModes(*asJSON, *quantumThreat, *performance)
}

func benchCommand() {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	iterations := fs.Int("iterations", 20, "Iterations per mode")
	size := fs.String("size", "1KB", "Message body size (e.g., 256B, 1KB, 32KB)")
	only := fs.String("mode", "", "Benchmark a single mode (default: all)")

	fs.Usage = func() {
		fmt.Println(`USAGE: qmsg bench [options]

Benchmark key generation, message creation, and message decryption for
each crypto mode.

OPTIONS:`)
		fs.PrintDefaults()
		fmt.Println(`
EXAMPLES:
    qmsg bench --iterations 100
    qmsg bench --mode hybrid --size 32KB`)
	}

	_ = fs.Parse(os.Args[2:])

	runBench(*iterations, *size, *only)
}
