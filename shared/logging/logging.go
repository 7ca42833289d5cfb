// Author: Toluwalase Mebaanne
// Package logging configures the process-wide zerolog logger.
//
// Output goes to stderr (a console writer, coloured on a terminal) or to a
// file as JSON lines. Stdout is never used: the pipe host speaks its wire
// protocol there.

package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "SNIPBRIDGE_LOG_LEVEL"
	EnvLogNoColor = "SNIPBRIDGE_LOG_NOCOLOR"
	EnvLogFile    = "SNIPBRIDGE_LOG_FILE"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Options controls Configure. Zero values select the profile defaults.
type Options struct {
	Level   string
	File    string
	NoColor bool
}

var (
	configureOnce sync.Once
	logFile       *os.File
)

// ConfigureRuntime sets up logging for a binary.
func ConfigureRuntime(opts Options) error {
	return Configure(ProfileRuntime, opts)
}

// ConfigureTests sets up quiet logging for tests.
func ConfigureTests() {
	_ = Configure(ProfileTest, Options{})
}

// Configure applies the profile, then opts, then environment overrides.
// Only the first call has any effect.
func Configure(profile Profile, opts Options) error {
	var err error
	configureOnce.Do(func() {
		err = configure(profile, opts)
	})
	return err
}

func configure(profile Profile, opts Options) error {
	level := zerolog.InfoLevel
	if profile == ProfileTest {
		level = zerolog.WarnLevel
	}
	if lvl, ok := ParseLevel(opts.Level); ok {
		level = lvl
	}
	file := opts.File
	noColor := opts.NoColor

	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		noColor = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		file = v
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", file, err)
		}
		logFile = f
		out = f
	} else {
		out = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			NoColor:    noColor || !isatty.IsTerminal(os.Stderr.Fd()),
			TimeFormat: time.TimeOnly,
		}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nil
}

// Close releases the log file, if any.
func Close() error {
	if logFile == nil {
		return nil
	}
	return logFile.Close()
}

// ParseLevel accepts the usual level names. ok is false for empty or
// unknown input.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
