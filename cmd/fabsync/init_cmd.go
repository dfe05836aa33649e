package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the current settings to the config file",
		Long: `Write the effective settings (config file, FABSYNC_* environment and flags)
to the config file. Tokens and client secrets are never written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			path, _ := cmd.Flags().GetString("config")
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Render("Config written to"), path)
			return err
		},
	}
}
