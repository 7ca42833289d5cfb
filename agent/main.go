// Author: Toluwalase Mebaanne
// Package main is the SnipBridge command-line agent. It talks to a hub
// over WebSocket: saving snippets, pulling a project's files, storing
// assistant messages and watching the clipboard for snippets.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/tmair/snipbridge/shared/config"
	"github.com/tmair/snipbridge/shared/files"
	"github.com/tmair/snipbridge/shared/handlers"
	"github.com/tmair/snipbridge/shared/logging"
	"github.com/tmair/snipbridge/shared/notify"
	"github.com/tmair/snipbridge/shared/protocol"
)

const defaultConfigPath = "agent-config.json"

const usage = `usage: snipbridge-agent <command> [flags]

commands:
  save        save a snippet (--path hint, --file f | --clipboard | stdin)
  sync        print or copy every tracked file under --dest
  assistant   store an assistant message (--file f | stdin)
  watch       save clipboard snippets that declare a Path:

Run "snipbridge-agent <command> --help" for the flags of a command.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app carries what every command needs.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	cfg    *config.ClientConfig
	client *Client
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("no command given")
	}

	commands := map[string]func(context.Context, *app, []string) error{
		"save":      runSave,
		"sync":      runSync,
		"assistant": runAssistant,
		"watch":     runWatch,
	}
	name, rest := args[0], args[1:]
	if name == "help" || name == "-h" || name == "--help" {
		fmt.Fprint(stdout, usage)
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", name)
	}
	return cmd(ctx, &app{stdin: stdin, stdout: stdout}, rest)
}

// connectionFlags are shared by every command.
type connectionFlags struct {
	configPath string
	server     string
	logLevel   string
}

func (f *connectionFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&f.configPath, "config", "c", defaultConfigPath, "path to the agent config file")
	flagSet.StringVar(&f.server, "server", "", "hub URL (overrides the config file)")
	flagSet.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// parse parses args and prepares a, returning false when only help was
// requested.
func (f *connectionFlags) parse(flagSet *pflag.FlagSet, a *app, args []string) (bool, error) {
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return false, nil
		}
		return false, err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return false, fmt.Errorf("unexpected argument: %s", extra[0])
	}

	cfg, err := config.LoadClientConfig(f.configPath)
	if err != nil {
		return false, err
	}
	if f.server != "" {
		cfg.ServerURL = f.server
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if err := logging.ConfigureRuntime(logging.Options{Level: cfg.LogLevel}); err != nil {
		return false, err
	}

	a.cfg = cfg
	a.client = NewClient(cfg.ServerURL)
	return true, nil
}

func runSave(ctx context.Context, a *app, args []string) error {
	var conn connectionFlags
	var hint, file string
	var fromClipboard, overwrite, copyPath bool

	flagSet := pflag.NewFlagSet("save", pflag.ContinueOnError)
	conn.AddFlags(flagSet)
	flagSet.StringVar(&hint, "path", "", "destination hint; defaults to the content's Path: declaration")
	flagSet.StringVar(&file, "file", "", "read the snippet from this file")
	flagSet.BoolVar(&fromClipboard, "clipboard", false, "read the snippet from the clipboard")
	flagSet.BoolVar(&overwrite, "overwrite", false, "replace an existing file instead of picking a new name")
	flagSet.BoolVar(&copyPath, "copy-path", false, "copy the saved path to the clipboard")
	if ok, err := conn.parse(flagSet, a, args); !ok || err != nil {
		return err
	}
	if file != "" && fromClipboard {
		return errors.New("--file and --clipboard are mutually exclusive")
	}

	var content string
	var err error
	switch {
	case fromClipboard:
		content, err = readClipboard()
	case file != "":
		content, err = readFile(file)
	default:
		content, err = readAll(a.stdin)
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return errors.New("snippet is empty")
	}

	if hint == "" {
		declared, ok := handlers.DeclaredPath(content)
		if !ok {
			return errors.New("--path is required when the snippet declares no Path:")
		}
		hint = declared
	}

	var overwriteFlag *bool
	if flagSet.Changed("overwrite") {
		overwriteFlag = &overwrite
	}

	session, err := a.client.Connect(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	path, err := session.SaveSnippet(newID(), hint, content, overwriteFlag)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, path)

	if copyPath {
		if err := writeClipboard(path); err != nil {
			log.Warn().Err(err).Msg("failed to copy path to clipboard")
		}
	}
	return nil
}

func runSync(ctx context.Context, a *app, args []string) error {
	var conn connectionFlags
	var dest, outDir string
	var idle time.Duration

	flagSet := pflag.NewFlagSet("sync", pflag.ContinueOnError)
	conn.AddFlags(flagSet)
	flagSet.StringVar(&dest, "dest", "", "project directory on the hub's machine")
	flagSet.StringVar(&outDir, "out", "", "write received files under this directory")
	flagSet.DurationVar(&idle, "idle", 0, "stop once no file arrived for this long (default from config)")
	if ok, err := conn.parse(flagSet, a, args); !ok || err != nil {
		return err
	}
	if dest == "" {
		return errors.New("--dest is required")
	}
	if idle <= 0 {
		idle = a.cfg.IdleTimeout()
	}

	session, err := a.client.Connect(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	count, err := session.Sync(dest, idle, func(fc protocol.FileContent) error {
		fmt.Fprintln(a.stdout, fc.FilePath)
		if outDir == "" {
			return nil
		}
		target, err := localPath(outDir, dest, fc.FilePath)
		if err != nil {
			return err
		}
		_, err = files.Save(target, fc.Content, true)
		return err
	})
	log.Info().Int("files", count).Str("destination", dest).Msg("sync finished")
	return err
}

// localPath maps a file under the remote root to the same relative place
// under outDir.
func localPath(outDir, root, remote string) (string, error) {
	rel, err := filepath.Rel(root, remote)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("file %s is outside %s", remote, root)
	}
	return filepath.Join(outDir, rel), nil
}

func runAssistant(ctx context.Context, a *app, args []string) error {
	var conn connectionFlags
	var file, filePath, id string

	flagSet := pflag.NewFlagSet("assistant", pflag.ContinueOnError)
	conn.AddFlags(flagSet)
	flagSet.StringVar(&file, "file", "", "read the message from this file (default stdin)")
	flagSet.StringVar(&filePath, "path", "", "file path the message belongs to")
	flagSet.StringVar(&id, "id", "", "message id (default: taken from the content, or generated)")
	if ok, err := conn.parse(flagSet, a, args); !ok || err != nil {
		return err
	}

	var content string
	var err error
	if file != "" {
		content, err = readFile(file)
	} else {
		content, err = readAll(a.stdin)
	}
	if err != nil {
		return err
	}

	session, err := a.client.Connect(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.StoreMessage(id, filePath, content); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "stored")
	return nil
}

func runWatch(ctx context.Context, a *app, args []string) error {
	var conn connectionFlags
	var interval time.Duration
	var notifyEnabled bool

	flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	conn.AddFlags(flagSet)
	flagSet.DurationVar(&interval, "interval", 500*time.Millisecond, "clipboard poll interval")
	flagSet.BoolVar(&notifyEnabled, "notify", false, "show a desktop notification per saved snippet")
	if ok, err := conn.parse(flagSet, a, args); !ok || err != nil {
		return err
	}
	if interval <= 0 {
		return errors.New("--interval must be positive")
	}

	save := func(id, hint, content string) (string, error) {
		session, err := a.client.Connect(ctx)
		if err != nil {
			return "", err
		}
		defer session.Close()
		return session.SaveSnippet(id, hint, content, nil)
	}
	var notifier notify.Notifier
	if notifyEnabled {
		notifier = notify.Desktop{}
	}

	NewWatcher(save, interval, notifier).Run(ctx, func(path string) {
		fmt.Fprintln(a.stdout, path)
	})
	return nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(data), nil
}
