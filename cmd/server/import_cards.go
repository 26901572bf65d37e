package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/yugisim/duel-server-go/internal/cards"
	"github.com/yugisim/duel-server-go/internal/repository"
)

var importCardsCmd = &cobra.Command{
	Use:   "import-cards [cardinfo.json]",
	Short: "Import a YGOProDeck card dump into PostgreSQL",
	Long: `import-cards reads a YGOProDeck card info dump ({"data": [...]}) and upserts
every card into the cards table. Defaults to cards.file from the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		path := cfg.Cards.File
		if len(args) == 1 {
			path = args[0]
		}

		catalog, err := cards.LoadYGOProDeckFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("Found %d cards in %s\n", catalog.Len(), path)

		ctx := cmd.Context()
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := repository.NewCardRepository(db, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}

		stats, err := repo.Import(ctx, catalog.All())
		if err != nil {
			return err
		}

		color.Green("✓ Imported %d cards in %s", stats.Imported, stats.Duration)
		if stats.Failed > 0 {
			color.Red("✗ Failed to import %d cards", stats.Failed)
		}
		if total, err := repo.Count(ctx); err == nil {
			fmt.Printf("Total cards in database: %d\n", total)
		}
		if stats.Failed > 0 {
			return fmt.Errorf("%d cards failed to import", stats.Failed)
		}
		return nil
	},
}
