package main

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/yugisim/duel-server-go/internal/game"
	duelmcp "github.com/yugisim/duel-server-go/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the duel engine as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		catalog, err := loadCatalog(context.Background(), cfg, logger)
		if err != nil {
			return err
		}
		banlist, err := loadBanlist(cfg)
		if err != nil {
			return err
		}

		registry := game.NewRegistry(catalog, cfg.Game.Options(), logger)
		tools := duelmcp.NewTools(game.NewDispatcher(registry, banlist, logger), logger)
		return server.ServeStdio(duelmcp.NewServer(tools, version))
	},
}
