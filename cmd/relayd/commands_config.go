package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goldbox/relay/internal/config"
)

func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate relayd configuration",
	}
	cmd.AddCommand(buildConfigValidateCmd())
	return cmd
}

func buildConfigValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration file and report any validation errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: listening on %s:%d, default provider %q\n",
				cfg.Server.Host, cfg.Server.Port, cfg.LLM.DefaultProvider)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "relayd.yaml", "Path to YAML configuration file")
	return cmd
}
