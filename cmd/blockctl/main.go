package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/haukened/rr-block/internal/block/common/clock"
	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/config"
	"github.com/haukened/rr-block/internal/block/domain"
	"github.com/haukened/rr-block/internal/block/gateways/session"
	"github.com/haukened/rr-block/internal/block/repos/account/bolt"
	"github.com/haukened/rr-block/internal/block/repos/imports"
	"github.com/haukened/rr-block/internal/block/repos/screen/bloom"
	"github.com/haukened/rr-block/internal/block/repos/screen/lru"
	"github.com/haukened/rr-block/internal/block/services/blocking"
	"github.com/haukened/rr-block/internal/block/services/screen"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "blockctl"

	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usage = `usage: blockctl <command> [args]

commands:
  block <jid>...     block one or more addresses
  unblock <jid>...   unblock one or more addresses
  list               print blocked addresses
  check <jid>...     report whether senders are blocked
  import <file>      block every address listed in a YAML, JSON or TOML file
  backend            print the blocking mechanism in use
  version            print the version
`

var errUsage = errors.New("usage")

// Application holds the wired components for one account.
type Application struct {
	config   *config.AppConfig
	store    *bolt.Store
	facade   *blocking.Facade
	blocker  blocking.Blocker
	screener *screen.Screener
	registry *prometheus.Registry
	logger   log.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	if args[0] == "version" {
		fmt.Fprintf(stdout, "%s %s\n", appName, version)
		return exitOK
	}

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return exitError
	}

	// Configure global logging
	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		fmt.Fprintf(stderr, "Logging configuration error: %v\n", err)
		return exitError
	}

	app, err := buildApplication(cfg)
	if err != nil {
		log.Error(map[string]any{"error": err.Error()}, "Failed to build application")
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = app.Dispatch(ctx, args[0], args[1:], stdout)
	if werr := app.writeMetrics(); werr != nil {
		log.Warn(map[string]any{"error": werr.Error(), "file": cfg.Metrics.File}, "Failed to write metrics")
	}
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "%v\n%s", err, usage)
		return exitUsage
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitError
	}
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	logger := log.With(log.GetLogger(), map[string]any{"account": cfg.Account.JID})

	store, err := bolt.New(cfg.Account.State)
	if err != nil {
		return nil, fmt.Errorf("failed to open account state %s: %w", cfg.Account.State, err)
	}
	if err := advertise(store, cfg.Account.Native); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to advertise features: %w", err)
	}

	sess, err := session.New(session.Options{Server: store, Timeout: cfg.Timeout, Logger: logger})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to build session: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics, err := blocking.NewMetrics(registry)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	facade, err := blocking.NewFacade(blocking.FacadeOptions{
		Commander:  sess,
		Discoverer: sess,
		Store:      sess,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to build blocking facade: %w", err)
	}
	blocker := blocking.NewSerialized(facade)

	cache, err := lru.New(cfg.Screen.CacheSize)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}
	screener, err := screen.New(screen.Options{
		Source:  blocker,
		Cache:   cache,
		Factory: bloom.NewFactory(),
		FPRate:  cfg.Screen.FPRate,
		Clock:   &clock.RealClock{},
		Logger:  logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to build screener: %w", err)
	}

	return &Application{
		config:   cfg,
		store:    store,
		facade:   facade,
		blocker:  blocker,
		screener: screener,
		registry: registry,
		logger:   logger,
	}, nil
}

// advertise sets the features the local server announces. Privacy lists
// are always available; native blocking only when configured.
func advertise(store *bolt.Store, native bool) error {
	if err := store.Advertise(blocking.FeaturePrivacy, true); err != nil {
		return err
	}
	return store.Advertise(blocking.FeatureBlocking, native)
}

// Close releases the account state.
func (a *Application) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn(map[string]any{"error": err.Error()}, "Failed to close account state")
	}
}

// writeMetrics exports the registry when a metrics file is configured.
func (a *Application) writeMetrics() error {
	if a.config.Metrics.File == "" {
		return nil
	}
	return prometheus.WriteToTextfile(a.config.Metrics.File, a.registry)
}

// Dispatch runs the named command.
func (a *Application) Dispatch(ctx context.Context, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "block":
		return a.each(ctx, args, a.blocker.Block, out, "blocked")
	case "unblock":
		return a.each(ctx, args, a.blocker.Unblock, out, "unblocked")
	case "list":
		if len(args) != 0 {
			return fmt.Errorf("%w: list takes no arguments", errUsage)
		}
		return a.list(ctx, out)
	case "check":
		return a.check(ctx, args, out)
	case "import":
		if len(args) != 1 {
			return fmt.Errorf("%w: import takes exactly one file", errUsage)
		}
		return a.importFile(ctx, args[0], out)
	case "backend":
		name, err := a.facade.Backend(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, name)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// parseArgs parses every argument before anything is sent.
func parseArgs(args []string) ([]domain.Address, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: at least one jid is required", errUsage)
	}
	addrs := make([]domain.Address, 0, len(args))
	for _, s := range args {
		a, err := domain.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errUsage, err)
		}
		addrs = append(addrs, a)
	}
	return addrs, nil
}

func (a *Application) each(ctx context.Context, args []string, fn func(context.Context, domain.Address) error, out io.Writer, verb string) error {
	addrs, err := parseArgs(args)
	if err != nil {
		return err
	}
	return a.apply(ctx, addrs, fn, out, verb)
}

func (a *Application) apply(ctx context.Context, addrs []domain.Address, fn func(context.Context, domain.Address) error, out io.Writer, verb string) error {
	for _, addr := range addrs {
		if err := fn(ctx, addr); err != nil {
			return err
		}
		a.logger.Info(map[string]any{"address": addr.String()}, "Address "+verb)
		fmt.Fprintf(out, "%s %s\n", verb, addr)
	}
	return nil
}

func (a *Application) list(ctx context.Context, out io.Writer) error {
	set, err := a.blocker.Blocklist(ctx)
	if err != nil {
		return err
	}
	for _, s := range set.Strings() {
		fmt.Fprintln(out, s)
	}
	return nil
}

func (a *Application) check(ctx context.Context, args []string, out io.Writer) error {
	addrs, err := parseArgs(args)
	if err != nil {
		return err
	}
	if err := a.screener.Refresh(ctx); err != nil {
		return err
	}
	for _, addr := range addrs {
		d := a.screener.Decide(addr)
		if d.IsBlocked() {
			fmt.Fprintf(out, "%s blocked (matches %s)\n", addr, d.Matched)
		} else {
			fmt.Fprintf(out, "%s allowed\n", addr)
		}
	}
	st := a.screener.Stats()
	a.logger.Debug(map[string]any{
		"entries": st.Entries,
		"hits":    st.Hits,
		"misses":  st.Misses,
	}, "Screening complete")
	return nil
}

func (a *Application) importFile(ctx context.Context, path string, out io.Writer) error {
	addrs, err := imports.LoadFile(path)
	if err != nil {
		return err
	}
	a.logger.Info(map[string]any{"file": path, "addresses": len(addrs)}, "Import file loaded")
	return a.apply(ctx, addrs, a.blocker.Block, out, "blocked")
}
