// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/phylogen/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("phylogen", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
phylogen - phylogenetic simulation dataset generator.

Usage:
  phylogen [options] [CONFIG_PATH]

Arguments:
  CONFIG_PATH
    Path to the .hcl configuration file describing the dataset.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to the configuration file.")
	cFlag := flagSet.String("c", "", "Path to the configuration file (shorthand).")
	outputFlag := flagSet.String("output", "", "Override the configured output directory.")
	seedFlag := flagSet.Uint64("seed", 0, "Override the configured global seed.")
	seedSetFlag := false
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent workers. 0 uses all available cores.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Resolve and record parameters without invoking a simulator.")
	progressFlag := flagSet.Bool("progress", true, "Render a progress bar during generation.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			seedSetFlag = true
		}
	})
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *configFlag != "" {
		path = *configFlag
	} else if *cFlag != "" {
		path = *cFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		slog.Debug("No config path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg := app.Config{
		ConfigPath: path,
		OutputDir:  *outputFlag,
		Workers:    *workersFlag,
		DryRun:     *dryRunFlag,
		Progress:   *progressFlag,
		LogFormat:  logFormat,
		LogLevel:   logLevel,
	}
	if seedSetFlag {
		seed := *seedFlag
		cfg.Seed = &seed
	}

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return config, false, nil
}
