package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/raine/turnover/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `Usage: turnover <command> [arguments]

Commands:
  serve                     Run the analysis HTTP API
  analyze [-mock] <image>…  Analyze photos and print one JSON line per image
  set-credential <value|->  Store the API credential ("-" reads stdin)

Configuration is read from the environment and from
<user config dir>/turnover/config.env.
`

func main() {
	os.Exit(run())
}

func run() int {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	closeLog, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		return 1
	}
	defer closeLog()

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, cfg)
	case "analyze":
		err = runAnalyze(ctx, cfg, os.Args[2:])
	case "set-credential":
		err = runSetCredential(cfg, os.Args[2:])
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		return 2
	}

	if err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("command failed")
		return 1
	}
	return 0
}

// setupLogging logs to stderr and, when TURNOVER_LOG_FILE is set, to that
// file as well.
func setupLogging(cfg *config.Config) (func(), error) {
	zerolog.SetGlobalLevel(cfg.LogLevel)

	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
	if cfg.LogFile == "" {
		log.Logger = log.Output(consoleWriter)
		return func() {}, nil
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
	log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))
	log.Info().Str("logFile", cfg.LogFile).Msg("logging to file")

	return func() { logFile.Close() }, nil
}
