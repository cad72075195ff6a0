package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	pkgversion "github.com/sudhaVaishnavi/quantum-adaptive-log-security/pkg/version"
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
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// command runs one subcommand with its own arguments.
type command func(ctx context.Context, args []string, stdout, stderr io.Writer) error

var commands = map[string]command{
	"search":  searchCommand,
	"channel": channelCommand,
	"secure":  secureCommand,
	"compare": compareCommand,
	"decrypt": decryptCommand,
	"run":     runCommand,
}

// execute dispatches args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	name := args[0]
	switch name {
	case "version":
		fmt.Fprintf(stdout, "qals version %s\n", getVersion())
		if buildTime != "unknown" {
			fmt.Fprintf(stdout, "Built: %s\n", buildTime)
		}
		if gitCommit != "unknown" {
			fmt.Fprintf(stdout, "Commit: %s\n", gitCommit)
		}
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", name)
		printUsage(stderr)
		return 1
	}
	if err := cmd(ctx, args[1:], stdout, stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "qals %s: %v\n", name, err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `qals - quantum threat assessment and adaptive log protection

USAGE:
    qals <command> [options]

COMMANDS:
    search    Simulate search advantage over the anomaly table (+ classical baseline)
    channel   Simulate the MDI-QKD scenario grid
    secure    Assess threat, select a scenario, derive a key, encrypt and verify
    compare   Write the classical/quantum comparison table
    decrypt   Decrypt a stored package with an exported key
    run       Run every stage end to end
    version   Print version information
    help      Show this help message

Run 'qals <command> --help' for more information on a command.

EXAMPLES:
    # Full run with defaults (data/ai_detected_logs.csv → evaluation/, secure_storage/)
    qals run

    # Stage by stage, like separate scripts
    qals search --dataset data/ai_detected_logs.csv
    qals channel --noise 0,0.02,0.05,0.1 --attack 0,0.1,0.25,0.5
    qals secure --key-out secure_storage/payload.key
    qals compare

    # Recover the payload later
    qals decrypt --level HIGH --key secure_storage/payload.key --out logs.csv

    # Store packages in Redis and derive keys from the channel bits
    qals run --storage redis --redis-addr localhost:6379 --provenance channel`)
}
