package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"talekeeper/internal/mcp"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	server := mcp.NewServer(db, log, version)

	switch cfg.Serve.Transport {
	case "stdio":
		return server.Run(ctx, &sdk.StdioTransport{})
	case "http":
		log.Info().Str("listen", cfg.Serve.Listen).Msg("serving MCP over http")
		return http.ListenAndServe(cfg.Serve.Listen, server.HTTPHandler())
	default:
		return fmt.Errorf("unsupported serve transport: %s", cfg.Serve.Transport)
	}
}
