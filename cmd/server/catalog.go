package main

import (
	"context"
	"fmt"

	"github.com/yugisim/duel-server-go/internal/cards"
	"github.com/yugisim/duel-server-go/internal/config"
	"github.com/yugisim/duel-server-go/internal/repository"
	"go.uber.org/zap"
)

// loadCatalog builds the in-memory card catalog from the configured source.
func loadCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*cards.Catalog, error) {
	switch cfg.Cards.Source {
	case "postgres":
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return repository.NewCardRepository(db, logger).LoadCatalog(ctx)

	default:
		catalog, err := cards.LoadYGOProDeckFile(cfg.Cards.File)
		if err != nil {
			return nil, err
		}
		logger.Info("card catalog loaded",
			zap.String("file", cfg.Cards.File),
			zap.Int("cards", catalog.Len()),
		)
		return catalog, nil
	}
}

// loadBanlist returns the banlist of the configured format, or nil when none is set.
func loadBanlist(cfg *config.Config) (cards.Banlist, error) {
	if cfg.Game.BanlistFormat == "" {
		return nil, nil
	}
	lists, err := cards.LoadBanlistsFile(cfg.Cards.BanlistFile)
	if err != nil {
		return nil, err
	}
	list, ok := lists.Format(cfg.Game.BanlistFormat)
	if !ok {
		return nil, fmt.Errorf("banlist format %q not found in %s", cfg.Game.BanlistFormat, cfg.Cards.BanlistFile)
	}
	return list, nil
}
