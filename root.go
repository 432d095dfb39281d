package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tonimelisma/onedrive-index/internal/config"
	"github.com/tonimelisma/onedrive-index/internal/index"
	"github.com/tonimelisma/onedrive-index/internal/protect"
)

// version is set at build time via ldflags.
var version = "dev"

// CLIFlags holds the persistent flags shared by every subcommand.
type CLIFlags struct {
	ConfigPath string
	Root       string
	Cache      string
	Session    string
	JSON       bool
	Owner      bool
	Verbose    bool
	Quiet      bool
}

// CLIContext is built once per invocation by the root pre-run and handed to
// subcommands through the command context.
type CLIContext struct {
	Cfg       *config.Config
	Flags     CLIFlags
	Logger    *slog.Logger
	Out       io.Writer
	Service   *index.Service
	SessionID string

	closers []func() error
}

// Viewer returns who the CLI is acting as.
func (cc *CLIContext) Viewer() index.Viewer {
	return index.Viewer{SessionID: cc.SessionID, Authenticated: cc.Flags.Owner}
}

// Close releases the cache store and log file.
func (cc *CLIContext) Close() error {
	var errs []error

	for i := len(cc.closers) - 1; i >= 0; i-- {
		errs = append(errs, cc.closers[i]())
	}

	cc.closers = nil

	return errors.Join(errs...)
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext returns the CLIContext installed by the root pre-run. A
// missing context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("onedrive-index: command run without CLIContext")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	var flags CLIFlags

	cmd := &cobra.Command{
		Use:   "onedrive-index",
		Short: "Browse a OneDrive folder through a cached index",
		Long: `onedrive-index exposes one folder of a OneDrive drive as a browsable index.
Listings and file records are cached, password-protected subtrees are
enforced per session, and files resolve to pre-authenticated download URLs.`,
		Version: version,
		// Errors are printed by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := setupCLIContext(cmd, flags)
			if err != nil {
				return err
			}

			ctx := shutdownContext(cmd.Context(), cc.Logger)
			cmd.SetContext(withCLIContext(ctx, cc))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return mustCLIContext(cmd.Context()).Close()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file path")
	pf.StringVar(&flags.Root, "root", "", "storage root to expose (overrides index.root)")
	pf.StringVar(&flags.Cache, "cache", "", "cache backend: memory, sqlite or redis")
	pf.StringVar(&flags.Session, "session", "", "session ID holding protected-subtree credentials")
	pf.BoolVar(&flags.JSON, "json", false, "output in JSON format")
	pf.BoolVar(&flags.Owner, "owner", false, "act as the site owner (control files are visible)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newStatCmd())
	cmd.AddCommand(newURLCmd())
	cmd.AddCommand(newCatCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newLocateCmd())
	cmd.AddCommand(newThumbCmd())
	cmd.AddCommand(newUnlockCmd())
	cmd.AddCommand(newForgetCmd())

	return cmd
}

// setupCLIContext resolves configuration, builds the logger and opens the
// index service.
func setupCLIContext(cmd *cobra.Command, flags CLIFlags) (*CLIContext, error) {
	env := config.ReadEnvOverrides()
	cli := config.CLIOverrides{ConfigPath: flags.ConfigPath}

	// Only pass flags the user explicitly set, so config values survive.
	if cmd.Flags().Changed("root") {
		cli.Root = &flags.Root
	}

	if cmd.Flags().Changed("cache") {
		cli.Backend = &flags.Cache
	}

	cfg, err := config.Resolve(env, cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cc := &CLIContext{
		Cfg:       cfg,
		Flags:     flags,
		Out:       os.Stdout,
		SessionID: env.SessionID,
	}

	if flags.Session != "" {
		cc.SessionID = flags.Session
	}

	var logCloser io.Closer
	cc.Logger, logCloser = buildLogger(cfg, flags)

	if logCloser != nil {
		cc.closers = append(cc.closers, logCloser.Close)
	}

	svc, closeStore, err := openService(cmd.Context(), cfg, cc.Logger)
	if err != nil {
		_ = cc.Close()
		return nil, err
	}

	cc.Service = svc
	cc.closers = append(cc.closers, closeStore)

	return cc, nil
}

// buildLogger creates an slog.Logger configured by the resolved config and
// CLI flags. Config-file log level provides the baseline; --verbose and
// --quiet override it because CLI flags always win. When log_file is set,
// records also go to a rotated file and the returned Closer closes it.
func buildLogger(cfg *config.Config, flags CLIFlags) (*slog.Logger, io.Closer) {
	level := slog.LevelInfo
	format := "auto"

	var rotated *lumberjack.Logger

	if cfg != nil {
		switch cfg.Logging.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format = cfg.Logging.LogFormat

		if cfg.Logging.LogFile != "" {
			rotated = &lumberjack.Logger{
				Filename: cfg.Logging.LogFile,
				MaxSize:  cfg.Logging.LogMaxSizeMB,
				MaxAge:   cfg.Logging.LogRetentionDays,
				Compress: true,
			}
		}
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	var w io.Writer = os.Stderr
	if rotated != nil {
		w = io.MultiWriter(os.Stderr, rotated)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if useJSONLogs(format, os.Stderr.Fd()) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	if rotated == nil {
		return slog.New(handler), nil
	}

	return slog.New(handler), rotated
}

// useJSONLogs resolves log_format. "auto" picks text on a terminal and JSON
// when stderr is redirected.
func useJSONLogs(format string, fd uintptr) bool {
	switch format {
	case "json":
		return true
	case "text":
		return false
	default:
		return !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd)
	}
}

// exitOnError prints a user-friendly error message to stderr and exits.
// A password prompt is spelled out so the user knows how to unlock.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var de *index.DisplayError
	if errors.As(err, &de) && de.Prompt != nil {
		hint := "onedrive-index unlock " + de.Prompt.KeyID
		if errors.Is(err, protect.ErrCredentialExpired) {
			hint += " (credential expired)"
		}

		fmt.Fprintf(os.Stderr, "This path is protected. Run: %s\n", hint)
	}

	os.Exit(1)
}
