package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yugisim/duel-server-go/internal/game"
	"github.com/yugisim/duel-server-go/internal/server"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WebSocket room server and the gRPC admin service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		logger.Info("starting duel server",
			zap.String("version", version),
			zap.String("config", configPath),
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		catalog, err := loadCatalog(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to load card catalog", zap.Error(err))
			return err
		}
		banlist, err := loadBanlist(cfg)
		if err != nil {
			logger.Error("failed to load banlist", zap.Error(err))
			return err
		}

		registry := game.NewRegistry(catalog, cfg.Game.Options(), logger)
		dispatcher := game.NewDispatcher(registry, banlist, logger)
		hub := server.NewHub(dispatcher, logger)

		errCh := make(chan error, 2)
		running := 1

		if cfg.Server.GRPC.Enabled {
			grpcServer, healthServer := server.NewGRPCServer(cfg.Server.GRPC, dispatcher, hub.CloseRoom, logger)
			running++
			go func() {
				errCh <- server.ServeGRPC(ctx, cfg.Server.GRPC, grpcServer, healthServer, logger)
			}()
		}

		go func() {
			errCh <- server.StartWebSocketServer(ctx, cfg.Server.WebSocket, hub, cfg.Server.ShutdownTimeout, logger)
		}()

		logger.Info("duel server initialized",
			zap.String("websocket_address", cfg.Server.WebSocket.Address),
			zap.String("grpc_address", cfg.Server.GRPC.Address),
			zap.Bool("grpc_enabled", cfg.Server.GRPC.Enabled),
			zap.Int("catalog_cards", catalog.Len()),
			zap.String("banlist_format", cfg.Game.BanlistFormat),
		)

		var firstErr error
		select {
		case err := <-errCh:
			running--
			if err != nil {
				logger.Error("server error", zap.Error(err))
				firstErr = err
			}
		case <-ctx.Done():
			logger.Info("received shutdown signal")
		}

		logger.Info("shutting down gracefully...")
		stop()
		for ; running > 0; running-- {
			if err := <-errCh; err != nil && firstErr == nil {
				logger.Error("shutdown error", zap.Error(err))
				firstErr = err
			}
		}

		logger.Info("duel server stopped", zap.Int("open_sessions", registry.Len()))
		return firstErr
	},
}
