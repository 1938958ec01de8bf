package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/downline/pkg/buildinfo"
	"github.com/matzehuels/downline/pkg/cache"
	"github.com/matzehuels/downline/pkg/config"
	"github.com/matzehuels/downline/pkg/downline"
	"github.com/matzehuels/downline/pkg/pipeline"
	"github.com/matzehuels/downline/pkg/store"
	"github.com/matzehuels/downline/pkg/store/mongo"
	"github.com/matzehuels/downline/pkg/store/postgres"
	"github.com/matzehuels/downline/pkg/store/sqlite"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	envFile    string
	verbose    bool
	cfg        *config.Config

	// mem is shared by every command of one CLI when the memory driver is
	// configured, so a session sees its own writes.
	mem *store.MemoryStore
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
// Configuration is loaded once, before any subcommand runs.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "downline",
		Short: "Downline manages and draws three-level referral trees",
		Long: `Downline keeps a referral tree of up to three levels below you, where
every member can sponsor at most seven downlines, and draws it as a bubble
diagram that can be focused on any member.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.loadConfig(); err != nil {
				return err
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", c.configPath, "config file (default: $XDG_CONFIG_HOME/downline/config.toml)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", c.envFile, "load environment variables from this file (default: ./.env if present)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.visualizeCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.memberCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the layered configuration and applies its log settings.
// --verbose always wins over the configured level.
func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath, c.envFile)
	if err != nil {
		return err
	}
	c.cfg = cfg

	level, err := log.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		level = LogInfo
	}
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)
	c.Logger.SetReportTimestamp(cfg.Log.Timestamps)
	return nil
}

// config returns the loaded configuration, or the defaults when a command
// runs without the root's pre-run hook (as in tests).
func (c *CLI) config() *config.Config {
	if c.cfg == nil {
		c.cfg = config.Default()
	}
	return c.cfg
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	ch, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(ch, nil, c.Logger), nil
}

// newCache builds the configured cache. A file cache whose directory cannot
// be resolved degrades to no caching.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cfg := c.config()
	if noCache || cfg.Cache.Driver == config.CacheNone {
		return cache.NewNullCache(), nil
	}
	if cfg.Cache.Driver == config.CacheRedis {
		return cache.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.Prefix)
	}
	dir, err := cfg.CacheDir()
	if err != nil {
		c.Logger.Warn("cache disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Store Factory
// =============================================================================

// openStore opens the configured record store.
func (c *CLI) openStore(ctx context.Context) (store.Store, error) {
	cfg := c.config()
	c.Logger.Debug("opening store", "driver", cfg.Store.Driver)

	switch cfg.Store.Driver {
	case config.StoreMemory:
		if c.mem == nil {
			c.mem = store.NewMemoryStore()
		}
		return c.mem, nil
	case config.StoreSQLite:
		path, err := cfg.SQLitePath()
		if err != nil {
			return nil, fmt.Errorf("resolve sqlite path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return sqlite.Open(ctx, path)
	case config.StorePostgres:
		return postgres.Open(ctx, cfg.Store.DSN)
	case config.StoreMongo:
		return mongo.Open(ctx, cfg.Store.URI, cfg.Store.Database)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// newService opens the store and wraps it in a service. The caller closes
// the returned store.
func (c *CLI) newService(ctx context.Context) (*downline.Service, store.Store, error) {
	st, err := c.openStore(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return downline.New(st, downline.WithLogger(c.Logger)), st, nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// renderDefaults seeds pipeline options from the [render] config section.
func (c *CLI) renderDefaults() pipeline.Options {
	rc := c.config().Render
	opts := pipeline.Options{
		Width:       rc.Width,
		Height:      rc.Height,
		Formats:     rc.Formats,
		Legend:      rc.Legend,
		Transitions: rc.Transitions,
	}
	opts.SetLayoutDefaults()
	opts.SetRenderDefaults()
	return opts
}
