package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"prowaudit/internal/cluster"
	"prowaudit/internal/embed"
	"prowaudit/internal/logging"
	mcpserver "prowaudit/internal/mcp"
	"prowaudit/internal/store"
)

var serveFlags struct {
	database   string
	configPath string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP analytics server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing the audit database to
MCP clients. All tools are read-only queries against a database produced by
'prowaudit audit'.

The server monitors for parent process death. When the client disconnects or
restarts, the server self-terminates to prevent zombie processes.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.database, "database", "", "SQLite database path (required)")
	f.StringVar(&serveFlags.configPath, "config", "", "YAML config file overriding environment settings")

	_ = serveCmd.MarkFlagRequired("database")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(serveFlags.database); err != nil {
		return fmt.Errorf("database not found: %s", serveFlags.database)
	}
	cfg, err := loadConfig(serveFlags.configPath)
	if err != nil {
		return err
	}

	st, err := store.Open(serveFlags.database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	var clusterer *cluster.Clusterer
	if cfg.HasEmbedding() {
		clusterer = cluster.New(embed.NewClient(cfg.Embedding))
	}

	srv := mcpserver.NewServer(st, clusterer, version)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	mcpserver.WatchParent(ctx, cancel)

	logging.New("mcp").Info("starting prowaudit MCP server over stdio (parent watchdog active)")
	return srv.Run(ctx, &sdkmcp.StdioTransport{})
}
