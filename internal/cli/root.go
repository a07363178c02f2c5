// Package cli implements the trackwise command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	authsession "github.com/trackwise/authsession"
	"github.com/trackwise/authsession/credential"
	"github.com/trackwise/authsession/internal/config"
	"github.com/trackwise/authsession/internal/output"
)

var version = "dev"

// SetVersion sets the string printed by `trackwise version`.
func SetVersion(v string) {
	version = v
}

type app struct {
	cfgFile string
	verbose bool
	apiURL  string

	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	logger  *slog.Logger
	printer *output.Printer

	manager *authsession.Manager
	closers []io.Closer
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.close()
	if err == nil {
		return output.ExitSuccess
	}

	cli := output.FromError(err)
	p := a.printer
	if p == nil {
		p = output.NewPrinter(stdout, stderr, false)
	}
	p.FormatError(cli)
	return cli.ExitCode
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "trackwise",
		Short: "Trackwise account and saved-route CLI",
		Long: `trackwise signs in to the Trackwise API and keeps the session sealed on disk.

Example usage:
  trackwise register --email john@example.com --username john_doe
  trackwise login john@example.com       # password from TRACKWISE_PASSWORD
  trackwise status
  trackwise routes list --favorites
  trackwise logout`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is .trackwise.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().StringVar(&a.apiURL, "api-url", "", "API base URL, overrides api.url")

	root.AddCommand(
		a.registerCommand(),
		a.loginCommand(),
		a.logoutCommand(),
		a.statusCommand(),
		a.whoamiCommand(),
		a.routesCommand(),
		a.metricsCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) initConfig() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		if errors.Is(err, config.ErrInvalid) {
			return output.Config(err)
		}
		return output.Config(fmt.Errorf("loading config: %w", err))
	}
	if a.apiURL != "" {
		cfg.API.URL = a.apiURL
		if err := cfg.Validate(); err != nil {
			return output.Config(err)
		}
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelWarn
	}
	if a.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		a.logger = slog.New(slog.NewJSONHandler(a.stderr, opts))
	} else {
		a.logger = slog.New(slog.NewTextHandler(a.stderr, opts))
	}
	a.printer = output.NewPrinter(a.stdout, a.stderr, output.ResolveColors(cfg.Output.Colors))

	a.logger.Debug("configuration loaded",
		"api_url", cfg.API.URL,
		"store_backend", cfg.Store.Backend,
		"namespace", cfg.Store.Namespace,
	)
	return nil
}

// session opens the credential backend and builds the Manager. The cache
// is warmed from the backend before it returns.
func (a *app) session(ctx context.Context) (*authsession.Manager, error) {
	if a.manager != nil {
		return a.manager, nil
	}
	sealer, err := a.openSealer()
	if err != nil {
		return nil, err
	}
	backend, err := a.openBackend()
	if err != nil {
		return nil, err
	}

	b := authsession.New().
		WithConfig(a.cfg.Session()).
		WithBackend(backend, sealer).
		WithLogger(a.logger)
	if a.verbose {
		b = b.WithEventSink(authsession.NewSlogSink(a.logger))
	}
	mgr, err := b.Build(ctx)
	if err != nil {
		if c, ok := backend.(io.Closer); ok {
			_ = c.Close()
		}
		if errors.Is(err, authsession.ErrInvalidConfig) {
			return nil, output.Config(err)
		}
		return nil, err
	}
	a.manager = mgr
	return mgr, nil
}

func (a *app) openBackend() (credential.Backend, error) {
	store := a.cfg.Store
	switch store.Backend {
	case config.BackendMemory:
		return credential.NewMemoryBackend(), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: store.RedisAddr})
		a.closers = append(a.closers, client)
		return credential.NewRedisBackend(client, "trackwise:"+store.Namespace)
	default:
		return credential.OpenSQLite(store.Path, store.Namespace)
	}
}

func (a *app) openSealer() (credential.Sealer, error) {
	store := a.cfg.Store
	if store.Passphrase != "" {
		return credential.NewPassphraseSealer(store.Passphrase, []byte("trackwise:"+store.Namespace), credential.DefaultKDFParams())
	}
	if store.Backend == config.BackendMemory {
		key, err := credential.GenerateKey()
		if err != nil {
			return nil, err
		}
		return credential.NewSealer(key)
	}
	key, err := loadOrCreateKey(store.KeyFile)
	if err != nil {
		return nil, output.Config(err)
	}
	return credential.NewSealer(key)
}

// loadOrCreateKey reads the sealing key at path, creating a random one with
// owner-only permissions on first use.
func loadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	key, err = credential.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	return key, nil
}

func (a *app) close() {
	if a.manager != nil {
		if err := a.manager.Close(); err != nil && a.logger != nil {
			a.logger.Warn("closing session manager", "error", err)
		}
	}
	for _, c := range a.closers {
		_ = c.Close()
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.printer.Print("trackwise %s", version)
			return nil
		},
	}
}
