package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "orion.yaml"

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook server",
		Long: `Start the assistant with all its collaborators.

The server will:
1. Load configuration from the specified file (or orion.yaml)
2. Connect to the Odoo ERP and the local history database
3. Register the ERP tools with the reasoning loop
4. Serve the Meta webhook, health, metrics and static endpoints

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  orion serve

  # Start with custom config
  orion serve --config /etc/orion/production.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath,
		"Path to YAML configuration file")
	return cmd
}

func buildChatCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant from the terminal",
		Long: `Open an interactive console session against the same reasoning loop
the webhook uses. Useful for trying tools and prompts without WhatsApp.

Commands inside the session:
  /reset  discard the conversation and start over
  /exit   leave the session`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath,
		"Path to YAML configuration file")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("orion %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
