package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"postdesk/cmd/postdesk/ui"
	"postdesk/internal/api"
	"postdesk/internal/auth/session"
	"postdesk/internal/config"
	"postdesk/internal/logging"
	"postdesk/internal/store"
	"postdesk/internal/transport"
)

var (
	// Global flags
	verbose    bool
	configPath string
	apiURL     string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "postdesk",
	Short: "Command-line client for the posts and categories API",
	Long: `postdesk signs in to a posts API and manages its categories and posts.

The session (bearer token and user record) is saved between runs, so you only
log in once. Configuration lives in ~/.postdesk/config.yaml; POSTDESK_*
environment variables override it, and the global flags override both.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.Encoding = "console"
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ~/.postdesk/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (overrides config and POSTDESK_API_URL)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "HTTP timeout (overrides config)")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(categoriesCmd, postsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, ui.DefaultStyles().Error.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// app is everything a command needs, built from the resolved configuration.
type app struct {
	cfg      *config.Config
	store    store.Store
	sessions *session.Manager
	content  *api.Client
	styles   ui.Styles
}

// loadConfig resolves the config file, environment and global flags.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if timeout != 0 {
		cfg.API.Timeout = timeout.String()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if err := logging.Initialize(cfg.LogsDir(), logging.Options{
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		logger.Warn("file logging unavailable", zap.Error(err))
	}

	d, err := cfg.APITimeout()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	logger.Debug("configuration resolved",
		zap.String("api", cfg.API.BaseURL),
		zap.Duration("timeout", d),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("path", cfg.Storage.Path))
	logging.Boot("api=%s storage=%s", cfg.API.BaseURL, cfg.Storage.Backend)

	httpClient := transport.New(cfg.API.BaseURL, d)
	sessions := session.NewManager(st, httpClient)
	return &app{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		content:  api.New(httpClient, sessions),
		styles:   ui.DefaultStyles(),
	}, nil
}

// Close waits for background session work before releasing storage.
func (a *app) Close() {
	a.sessions.Wait()
	if err := a.store.Close(); err != nil {
		logger.Warn("failed to close session storage", zap.Error(err))
	}
	logging.CloseAll()
}

// withApp runs fn with an opened app and closes it afterwards.
func withApp(fn func(a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(a, cmd, args)
	}
}

var errNotLoggedIn = errors.New("not logged in (run 'postdesk login')")

// requireSession restores the saved session and fails when there is none.
func (a *app) requireSession(ctx context.Context) (session.Session, error) {
	s := a.sessions.Restore(ctx)
	if !s.Authenticated() {
		return s, errNotLoggedIn
	}
	return s, nil
}

// commandContext is the command's context, or Background when run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
