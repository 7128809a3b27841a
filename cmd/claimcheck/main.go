// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/claimcheck/lib/claimstore"
	"github.com/bureau-foundation/claimcheck/lib/config"
	"github.com/bureau-foundation/claimcheck/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// streams are the process's standard streams, replaced in tests.
type streams struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	std := streams{stdin: stdin, stdout: stdout, stderr: stderr}
	if len(args) < 1 {
		printUsage(stderr)
		return fmt.Errorf("subcommand required")
	}

	subcommand := args[0]
	switch subcommand {
	case "capture":
		return runCapture(args[1:], std)
	case "redeem":
		return runRedeem(args[1:], std)
	case "token":
		return runToken(args[1:], std)
	case "aggregate":
		return runAggregate(args[1:], std)
	case "version", "--version":
		version.Fprint(stdout, "claimcheck")
		return nil
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: claimcheck <subcommand> [flags]

Subcommands:
  capture     Read a payload through a capture stream
  redeem      Copy a captured payload to stdout
  token       Print the claim token for a location
  aggregate   Wrap files in the aggregate envelope
  version     Print version information

Configuration is read from --config or $%s.
Run 'claimcheck <subcommand> --help' for subcommand flags.
`, config.EnvVar)
}

// storeFlags are the flags shared by subcommands that open the store.
type storeFlags struct {
	configPath string
	logLevel   string
}

func (f *storeFlags) add(flags *pflag.FlagSet) {
	flags.StringVar(&f.configPath, "config", "", "path to claimcheck.yaml (default: $"+config.EnvVar+")")
	flags.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

// load reads and validates the configuration.
func (f *storeFlags) load() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// open loads the configuration and constructs the logger and store.
func (f *storeFlags) open(stderr io.Writer) (*config.Config, *claimstore.Store, *slog.Logger, error) {
	logger, err := newLogger(stderr, f.logLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	cfg, err := f.load()
	if err != nil {
		return nil, nil, nil, err
	}
	storeConfig, err := cfg.StoreConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	storeConfig.Logger = logger
	store, err := claimstore.New(storeConfig)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, store, logger, nil
}

// newLogger creates a logger on w at the named level. A terminal gets
// slog.TextHandler output; anything else gets JSON.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	options := &slog.HandlerOptions{Level: parsed}
	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.New(slog.NewTextHandler(w, options)), nil
	}
	return slog.New(slog.NewJSONHandler(w, options)), nil
}

// parseFlags parses args and reports whether the caller should stop
// because help was requested.
func parseFlags(flags *pflag.FlagSet, args []string, output io.Writer) (stop bool, err error) {
	flags.SetOutput(output)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// openInput opens path for reading, with "-" meaning stdin.
func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return file, nil
}
