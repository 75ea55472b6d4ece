package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/hylla/tavla/internal/config"
	"github.com/hylla/tavla/internal/platform"
	"github.com/spf13/cobra"
)

// version is replaced at link time for release builds.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		stop()
		os.Exit(1)
	}
}

// run executes one command line against the given writers.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// cliOptions holds persistent flag values shared by every command.
type cliOptions struct {
	configPath string
	dbPath     string
	appName    string
	username   string
	serverURL  string
	devMode    bool

	stdout io.Writer
	stderr io.Writer
}

// runtimeEnv is the resolved configuration for one command invocation.
type runtimeEnv struct {
	opts       *cliOptions
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
}

// newRootCommand builds the command tree. The root command runs the board TUI.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	opts := &cliOptions{stdout: stdout, stderr: stderr}
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("TAVLA_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := "tavla"
	if envApp := strings.TrimSpace(os.Getenv("TAVLA_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:           "tavla",
		Short:         "A small task board with offline-first sync",
		Long:          "tavla keeps boards of ordered tasks. Changes apply locally first and sync to the server through a durable queue.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, opts, "tui", func(env *runtimeEnv) error {
				return runTUI(cmd.Context(), env)
			})
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to the server sqlite database")
	flags.StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	flags.StringVar(&opts.username, "user", "", "username whose boards are shown")
	flags.StringVar(&opts.serverURL, "server", "", "base URL of the tavla server")

	root.AddCommand(
		newServeCommand(opts),
		newBoardsCommand(opts),
		newTasksCommand(opts),
		newSyncCommand(opts),
		newPathsCommand(opts),
	)
	return root
}

// newPathsCommand prints resolved runtime paths without touching any store.
func newPathsCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			paths, err := opts.paths()
			if err != nil {
				return err
			}
			out := opts.stdout
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "outbox: %s\n", paths.OutboxPath)
			return nil
		},
	}
}

func (o *cliOptions) paths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// resolve loads config and applies flag and environment overrides.
func (o *cliOptions) resolve() (*runtimeEnv, error) {
	paths, err := o.paths()
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(o.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("TAVLA_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(paths.DBPath, paths.OutboxPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbPath := strings.TrimSpace(o.dbPath); dbPath != "" {
		cfg.Database.Path = dbPath
	} else if envPath := strings.TrimSpace(os.Getenv("TAVLA_DB_PATH")); envPath != "" {
		cfg.Database.Path = envPath
	}
	if username := strings.TrimSpace(o.username); username != "" {
		cfg.Identity.Username = username
	} else if envUser := strings.TrimSpace(os.Getenv("TAVLA_USER")); envUser != "" {
		cfg.Identity.Username = envUser
	}
	if serverURL := strings.TrimSpace(o.serverURL); serverURL != "" {
		cfg.Remote.BaseURL = serverURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %q: %w", configPath, err)
	}

	return &runtimeEnv{
		opts:       o,
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
	}, nil
}

// withEnv resolves the runtime, opens the logger, and runs fn under it.
func withEnv(cmd *cobra.Command, opts *cliOptions, command string, fn func(*runtimeEnv) error) error {
	env, err := opts.resolve()
	if err != nil {
		return err
	}
	logger, err := newRuntimeLogger(opts.stderr, opts.appName, opts.devMode, env.cfg.Logging, time.Now)
	if err != nil {
		return fmt.Errorf("configure runtime logger: %w", err)
	}
	env.logger = logger
	if command == "tui" {
		// Runtime logs stay in the dev-file sink while the board is on screen.
		logger.SetConsoleEnabled(false)
	}
	defer func() {
		if closeErr := logger.Close(); closeErr != nil && logger.shouldLogToSink(logger.consoleSink) {
			_, _ = fmt.Fprintf(opts.stderr, "warning: close runtime log sink: %v\n", closeErr)
		}
	}()

	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", env.configPath, "data_dir", env.paths.DataDir, "db_path", env.cfg.Database.Path, "outbox_path", env.cfg.Outbox.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	if err := fn(env); err != nil {
		logger.Error("command flow failed", "command", command, "err", err)
		return err
	}
	logger.Debug("command flow complete", "command", command)
	return nil
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
