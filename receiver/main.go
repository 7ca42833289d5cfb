// Author: Toluwalase Mebaanne
// Package main is the SnipBridge native-messaging host. The browser starts
// it and talks length-prefixed JSON over stdin and stdout for as long as
// the extension keeps the port open.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/tmair/snipbridge/shared/config"
	"github.com/tmair/snipbridge/shared/dispatch"
	"github.com/tmair/snipbridge/shared/frame"
	"github.com/tmair/snipbridge/shared/handlers"
	"github.com/tmair/snipbridge/shared/logging"
	"github.com/tmair/snipbridge/shared/notify"
	"github.com/tmair/snipbridge/shared/store"
	"github.com/tmair/snipbridge/shared/tracked"
)

// Exit codes seen by the browser.
const (
	exitOK      = 0
	exitFailure = 1
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	os.Exit(code)
}

// run hosts one session on in/out. Stdout belongs to the protocol, so
// every diagnostic goes through the logger.
func run(ctx context.Context, args []string, in io.Reader, out io.Writer) int {
	var configPath, logFile string
	flagSet := pflag.NewFlagSet("snipbridge-receiver", pflag.ContinueOnError)
	flagSet.SetOutput(os.Stderr)
	// Browsers append their own arguments (extension origin, parent window).
	flagSet.ParseErrorsWhitelist.UnknownFlags = true
	flagSet.StringVarP(&configPath, "config", "c", os.Getenv("SNIPBRIDGE_CONFIG"), "path to the config file (json, jsonc, toml or yaml)")
	flagSet.StringVar(&logFile, "log-file", "", "write JSON logs to this file instead of stderr")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitFailure
	}

	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitFailure
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if err := logging.ConfigureRuntime(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitFailure
	}
	defer logging.Close()

	if err := serve(ctx, cfg, in, out); err != nil {
		log.Error().Err(err).Msg("receiver stopped")
		return exitFailure
	}
	log.Info().Msg("browser closed the pipe")
	return exitOK
}

func serve(ctx context.Context, cfg *config.ServerConfig, in io.Reader, out io.Writer) error {
	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer st.Close()

	opts := dispatch.Options{
		Saver:            handlers.DefaultRegistry(cfg.BaseDir),
		Store:            st,
		Lister:           tracked.Git{},
		Overwrite:        cfg.Overwrite,
		IgnoreExtensions: cfg.IgnoreExtensions,
	}
	if cfg.NotifyEnabled {
		opts.Notifier = notify.Desktop{}
	}
	d, err := dispatch.New(opts)
	if err != nil {
		return err
	}

	log.Info().Str("base_dir", cfg.BaseDir).Msg("receiver ready")
	return d.Serve(ctx, frame.NewPipeCodec(in, out, cfg.MaxFrameBytes))
}
