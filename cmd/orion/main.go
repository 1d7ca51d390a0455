// Package main provides the CLI entry point for the Orion WhatsApp
// assistant.
//
// Orion bridges WhatsApp Business conversations to an OpenAI reasoning
// model wired to the company's Odoo ERP: customers can look up products,
// request quotations, check their orders and leave their contact data, all
// in chat.
//
// # Basic Usage
//
// Start the server:
//
//	orion serve --config orion.yaml
//
// Talk to the assistant from a terminal:
//
//	orion chat --config orion.yaml
//
// # Environment Variables
//
// Secrets are referenced from the YAML file with ${VAR} expansion and can
// be provided through the environment or a .env file:
//
//   - OPENAI_API_KEY: OpenAI API key
//   - ODOO_CLIENT_ID / ODOO_CLIENT_SECRET: ERP OAuth credentials
//   - WHATSAPP_ACCESS_TOKEN: Meta Cloud API token
//   - WHATSAPP_VERIFY_TOKEN: webhook handshake token
//   - EMAIL_PASSWORD: SMTP password for notices
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// A .env file is a convenience for development; absence is fine.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "orion",
		Short:         "WhatsApp sales assistant backed by Odoo",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildServeCmd())
	root.AddCommand(buildChatCmd())
	root.AddCommand(buildVersionCmd())

	ctx, stop := signal.NotifyContext(root.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
