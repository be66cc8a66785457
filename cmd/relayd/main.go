// Command relayd runs the VTT/LLM orchestration relay server: a single
// WebSocket endpoint speaking the typed frame protocol, backed by the
// session store, provider gateway, tool executor, and turn orchestrator.
//
// Usage:
//
//	relayd serve --config relayd.yaml
//	relayd config validate --config relayd.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relayd",
		Short: "VTT/LLM orchestration relay server",
		Long:  "relayd bridges a virtual tabletop client to a provider-agnostic LLM tool-calling loop over a single WebSocket connection.",
	}
	cmd.AddCommand(buildServeCmd(), buildConfigCmd(), buildVersionCmd())
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the relayd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "relayd %s (%s)\n", version, commit)
			return nil
		},
	}
}
