package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"codeberg.org/mutker/sensorsim/internal/config"
	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/logger"
	"github.com/spf13/pflag"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, app *app) error
}

var commands = []command{
	{"simulate", "Run a fleet of simulated devices", runSimulate},
	{"device", "Run a single named device", runDevice},
	{"broker", "Run the MQTT broker and store published readings", runBroker},
	{"devices", "List devices and their sensor types", runDevices},
	{"stats", "Summary statistics per device and sensor type [device_id]", runStats},
	{"aggregate", "Readings bucketed by --granularity [device_id]", runAggregate},
	{"anomalies", "Readings with a z-score above --z-threshold [device_id]", runAnomalies},
}

func main() {
	name, args := splitCommand(os.Args[1:])

	cmd, ok := lookup(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		usage(config.NewFlagSet("sensorsim"))()
		os.Exit(2)
	}

	fs := config.NewFlagSet("sensorsim " + cmd.name)
	fs.Usage = usage(fs)

	cfg, err := config.LoadFlags(fs, args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(exitCode(err))
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Str("command", cmd.name).Str("config_file", cfg.File).Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	a := newApp(cfg, os.Stdout)
	err = cmd.run(ctx, a)
	if cerr := a.close(); cerr != nil {
		logger.Error().Err(cerr).Msg("Failed to release resources")
	}

	if err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.ErrorWithCode(appErr).Msg("Command failed")
		} else {
			logger.Error().Err(err).Msg("Command failed")
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for usage and configuration errors, 1 for everything else.
func exitCode(err error) int {
	code, _ := errors.CodeOf(err)
	switch code {
	case errors.ErrBindFlags, errors.ErrInvalidConfig, errors.ErrInvalidInterval, errors.ErrReadConfig, errors.ErrInvalidArgument:
		return 2
	default:
		return 1
	}
}

// splitCommand takes the first non-flag argument as the command name.
func splitCommand(args []string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "simulate", args
	}
	return args[0], args[1:]
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage(fs *pflag.FlagSet) func() {
	return func() {
		fmt.Fprintln(os.Stderr, "Usage: sensorsim <command> [flags] [args]")
		fmt.Fprintln(os.Stderr, "\nCommands:")
		for _, c := range commands {
			fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.summary)
		}
		fmt.Fprintln(os.Stderr, "\nFlags:")
		fmt.Fprint(os.Stderr, fs.FlagUsages())
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
