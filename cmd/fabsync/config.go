package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openmined/fabsync/internal/config"
	"github.com/openmined/fabsync/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const configFileName = "config"

var home, _ = os.UserHomeDir()

// flag name to config key
var configFlags = map[string]string{
	"root":          "root",
	"workspace":     "workspace_id",
	"auth":          "auth_mode",
	"fabric-url":    "fabric_url",
	"powerbi-url":   "powerbi_url",
	"workers":       "workers",
	"poll-interval": "poll_interval",
	"max-polls":     "max_poll_attempts",
	"poll-timeout":  "poll_timeout",
	"rate":          "requests_per_second",
}

// loadConfig merges the config file, FABSYNC_* environment variables and flags, in increasing precedence
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	configPath := config.DefaultConfigPath
	if f := lookupFlag(cmd, "config"); f != nil && f.Changed {
		configPath = f.Value.String()
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(config.DefaultConfigDir)
		v.AddConfigPath(filepath.Join(home, ".config", "fabsync"))
		v.SetConfigName(configFileName)
		v.SetConfigType("json")
	}

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		var notFound viper.ConfigFileNotFoundError
		if !enoent && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	for name, key := range configFlags {
		if f := lookupFlag(cmd, name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix("FABSYNC")
	v.AutomaticEnv()
	v.SetDefault("root", ".")

	cfg := &config.Config{
		Path:              v.ConfigFileUsed(),
		Root:              v.GetString("root"),
		WorkspaceID:       v.GetString("workspace_id"),
		FabricURL:         v.GetString("fabric_url"),
		PowerBIURL:        v.GetString("powerbi_url"),
		AuthMode:          v.GetString("auth_mode"),
		TenantID:          v.GetString("tenant_id"),
		ClientID:          v.GetString("client_id"),
		Workers:           v.GetInt("workers"),
		PollInterval:      v.GetDuration("poll_interval"),
		MaxPollAttempts:   v.GetInt("max_poll_attempts"),
		PollTimeout:       v.GetDuration("poll_timeout"),
		RequestsPerSecond: v.GetFloat64("requests_per_second"),
		Token:             v.GetString("token"),
		ClientSecret:      v.GetString("client_secret"),
	}
	if cfg.Path == "" {
		cfg.Path = configPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cmd.SilenceUsage = true
	logConfig(cfg)

	return cfg, nil
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.InheritedFlags().Lookup(name)
}

func logConfig(cfg *config.Config) {
	attrs := []any{
		"path", cfg.Path,
		"root", cfg.Root,
		"workspace", cfg.WorkspaceID,
		"auth", cfg.AuthMode,
		"fabric", cfg.FabricURL,
	}
	if cfg.Token != "" {
		attrs = append(attrs, "token", utils.MaskSecret(cfg.Token))
	}
	slog.Debug("config", attrs...)
}
