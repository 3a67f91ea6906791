package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/edachat-cli/internal/backend"
	cfgpkg "github.com/KaramelBytes/edachat-cli/internal/config"
	"github.com/KaramelBytes/edachat-cli/internal/logging"
	"github.com/KaramelBytes/edachat-cli/internal/render"
	"github.com/KaramelBytes/edachat-cli/internal/session"
	"github.com/KaramelBytes/edachat-cli/internal/storage"
	"github.com/KaramelBytes/edachat-cli/internal/utils"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Overrides for config values when set
	flagBackendURL     string
	flagHTTPTimeoutSec int
	flagStore          string
	flagEphemeral      bool

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "edachat",
	Short: "EDA chat: ask questions about a CSV dataset",
	Long: `edachat is a chat client for a dataset analysis service. Ask questions about
the server's default dataset or an uploaded CSV file and read text and plot
answers. The conversation is saved locally between runs unless disabled.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.edachat/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagBackendURL, "backend-url", "", "analysis server base URL (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "storage backend: file, sqlite, redis or memory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagEphemeral, "ephemeral", false, "keep the conversation in memory only for this run")
}

func loadConfig() {
	if _, err := ensureConfig(); err != nil {
		// Non-fatal: commands that need config report it themselves
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
	}
}

// ensureConfig loads the configuration once and applies flag overrides.
func ensureConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	f := rootCmd.PersistentFlags()
	if f.Changed("backend-url") && flagBackendURL != "" {
		c.BackendURL = flagBackendURL
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		c.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("store") && flagStore != "" {
		c.StoreBackend = flagStore
	}
	if flagEphemeral {
		c.StoreBackend = cfgpkg.StoreMemory
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}

func newLogger(c *cfgpkg.Global) (*zap.Logger, error) {
	level := c.LogLevel
	if debug {
		level = "debug"
	}
	logFile, err := utils.ExpandHome(c.LogFile)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{File: logFile, Level: level, Console: debug})
}

func newClient(c *cfgpkg.Global) *backend.Client {
	return backend.NewClient(c.BackendURL, time.Duration(c.HTTPTimeoutSec)*time.Second)
}

func newRenderer(c *cfgpkg.Global) *render.Renderer {
	return render.New(c.RenderMarkdown, c.WordWrap)
}

// app bundles what a chat-facing command needs.
type app struct {
	cfg     *cfgpkg.Global
	client  *backend.Client
	session *session.Session
	render  *render.Renderer
	log     *zap.Logger
}

// openApp loads config, restores the saved conversation and connects the
// gateway to the analysis server. Callers must Close the result.
func openApp(ctx context.Context) (*app, error) {
	c, err := ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(c)
	if err != nil {
		return nil, err
	}
	dataDir, err := utils.ExpandHome(c.DataDir)
	if err != nil {
		return nil, err
	}
	if c.StoreBackend != cfgpkg.StoreMemory && c.StoreBackend != cfgpkg.StoreRedis {
		if err := utils.EnsureDir(dataDir); err != nil {
			return nil, err
		}
	}
	client := newClient(c)
	s, err := session.Init(ctx, session.Options{
		Storage: storage.Options{
			Kind:      c.StoreBackend,
			DataDir:   dataDir,
			RedisAddr: c.RedisAddr,
			RedisDB:   c.RedisDB,
			Namespace: c.StoreNamespace,
		},
		Asker:  client,
		Logger: log,
	})
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &app{cfg: c, client: client, session: s, render: newRenderer(c), log: log}, nil
}

// Close releases storage and flushes the log.
func (a *app) Close() {
	if err := a.session.Close(); err != nil {
		a.log.Warn("close storage", zap.Error(err))
	}
	_ = a.log.Sync()
}
