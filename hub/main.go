// Author: Toluwalase Mebaanne
// Package main is the entry point for the SnipBridge hub: a WebSocket
// server that saves snippets, streams project files and stores assistant
// messages.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/tmair/snipbridge/shared/config"
	"github.com/tmair/snipbridge/shared/dispatch"
	"github.com/tmair/snipbridge/shared/handlers"
	"github.com/tmair/snipbridge/shared/logging"
	"github.com/tmair/snipbridge/shared/notify"
	"github.com/tmair/snipbridge/shared/store"
	"github.com/tmair/snipbridge/shared/tracked"
)

const defaultConfigPath = "hub-config.json"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var configPath, logLevel string
	flagSet := pflag.NewFlagSet("snipbridge-hub", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the hub config file (json, jsonc, toml or yaml)")
	flagSet.StringVar(&logLevel, "log-level", "", "override the configured log level")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return fmt.Errorf("load hub config from %s: %w", configPath, err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := logging.ConfigureRuntime(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile}); err != nil {
		return err
	}
	defer logging.Close()
	log.Info().Str("config", configPath).Msg("hub config loaded")

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer st.Close()
	log.Info().Str("backend", cfg.Store.Backend).Msg("message store ready")

	d, err := newDispatcher(cfg, st)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return NewServer(d, st).Run(ctx, cfg.Addr())
}

func newDispatcher(cfg *config.ServerConfig, st store.Store) (*dispatch.Dispatcher, error) {
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
	return dispatch.New(opts)
}
