package cmd

import (
	"fmt"
	"strconv"

	cfgpkg "github.com/KaramelBytes/edachat-cli/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set edachat configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := ensureConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "backend_url: %s\n", c.BackendURL)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", c.HTTPTimeoutSec)
		fmt.Fprintf(out, "data_dir: %s\n", c.DataDir)
		fmt.Fprintf(out, "store_backend: %s\n", c.StoreBackend)
		fmt.Fprintf(out, "store_namespace: %s\n", c.StoreNamespace)
		if c.StoreBackend == cfgpkg.StoreRedis {
			fmt.Fprintf(out, "redis_addr: %s\n", c.RedisAddr)
			fmt.Fprintf(out, "redis_db: %d\n", c.RedisDB)
		}
		fmt.Fprintf(out, "log_file: %s\n", c.LogFile)
		fmt.Fprintf(out, "log_level: %s\n", c.LogLevel)
		fmt.Fprintf(out, "render_markdown: %t\n", c.RenderMarkdown)
		fmt.Fprintf(out, "word_wrap: %d\n", c.WordWrap)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		// Start from the stored values, not the flag overrides.
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		switch key {
		case "backend_url":
			c.BackendURL = val
		case "http_timeout_sec":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid int for http_timeout_sec: %v", val)
			}
			c.HTTPTimeoutSec = i
		case "data_dir":
			c.DataDir = val
		case "store_backend":
			switch val {
			case cfgpkg.StoreFile, cfgpkg.StoreSQLite, cfgpkg.StoreRedis, cfgpkg.StoreMemory:
				c.StoreBackend = val
			default:
				return fmt.Errorf("invalid store_backend: %s (use file, sqlite, redis or memory)", val)
			}
		case "store_namespace":
			c.StoreNamespace = val
		case "redis_addr":
			c.RedisAddr = val
		case "redis_db":
			i, err := strconv.Atoi(val)
			if err != nil || i < 0 {
				return fmt.Errorf("invalid int for redis_db: %v", val)
			}
			c.RedisDB = i
		case "log_file":
			c.LogFile = val
		case "log_level":
			switch val {
			case "debug", "info", "warn", "error":
				c.LogLevel = val
			default:
				return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
			}
		case "render_markdown":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fmt.Errorf("invalid bool for render_markdown: %w", err)
			}
			c.RenderMarkdown = b
		case "word_wrap":
			i, err := strconv.Atoi(val)
			if err != nil || i < 0 {
				return fmt.Errorf("invalid int for word_wrap: %v", val)
			}
			c.WordWrap = i
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		cfg = nil
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
