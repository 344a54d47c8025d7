package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the notion-mcp-server application
var rootCmd = &cobra.Command{
	Use:   "notion-mcp-server",
	Short: "MCP server for the Notion API",
	Long: `notion-mcp-server exposes a Notion workspace to AI assistants over the
Model Context Protocol.

It can run as:
  - A local stdio server using an integration token (NOTION_TOKEN)
  - A remote streamable HTTP server with its own OAuth 2.1 authorization
    server, delegating user consent to Notion`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "notion-mcp-server version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
