package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yugisim/duel-server-go/internal/cards"
	"go.uber.org/zap"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS cards (
	passcode   BIGINT,
	name       TEXT PRIMARY KEY,
	type_line  TEXT NOT NULL DEFAULT '',
	attribute  TEXT NOT NULL DEFAULT '',
	race       TEXT NOT NULL DEFAULT '',
	level      INTEGER,
	atk        INTEGER,
	def        INTEGER,
	effect     TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertCardSQL = `
INSERT INTO cards (passcode, name, type_line, attribute, race, level, atk, def, effect, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
ON CONFLICT (name) DO UPDATE SET
	passcode = EXCLUDED.passcode,
	type_line = EXCLUDED.type_line,
	attribute = EXCLUDED.attribute,
	race = EXCLUDED.race,
	level = EXCLUDED.level,
	atk = EXCLUDED.atk,
	def = EXCLUDED.def,
	effect = EXCLUDED.effect,
	updated_at = now()`

const selectCardsSQL = `
SELECT passcode, name, type_line, attribute, race, level, atk, def, effect
FROM cards
ORDER BY name`

// DefaultBatchSize is the number of cards written per transaction.
const DefaultBatchSize = 1000

// CardRepository stores card metadata in the cards table.
type CardRepository struct {
	db        DBTX
	batchSize int
	logger    *zap.Logger
}

func NewCardRepository(db DBTX, logger *zap.Logger) *CardRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CardRepository{db: db, batchSize: DefaultBatchSize, logger: logger}
}

// EnsureSchema creates the cards table if needed.
func (r *CardRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create cards table: %w", err)
	}
	return nil
}

// Count returns the number of stored cards.
func (r *CardRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM cards").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return n, nil
}

// LoadCatalog reads every stored card into an in-memory catalog.
func (r *CardRepository) LoadCatalog(ctx context.Context) (*cards.Catalog, error) {
	rows, err := r.db.Query(ctx, selectCardsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	catalog := cards.NewCatalog()
	for rows.Next() {
		var m cards.Metadata
		var passcode *int64
		if err := rows.Scan(&passcode, &m.Name, &m.TypeLine, &m.Attribute, &m.Race,
			&m.Level, &m.Attack, &m.Defense, &m.Effect); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		if passcode != nil {
			m.Passcode = *passcode
		}
		m.Kind = cards.ParseKind(m.TypeLine)
		m.Category = cards.ParseCategory(m.TypeLine)
		catalog.Add(m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}

	r.logger.Info("card catalog loaded from database", zap.Int("cards", catalog.Len()))
	return catalog, nil
}

// ImportStats summarizes an Import run.
type ImportStats struct {
	Imported int
	Failed   int
	Duration time.Duration
}

// Import upserts cards in batches, one transaction per batch. A failed batch is
// rolled back and counted; later batches still run.
func (r *CardRepository) Import(ctx context.Context, entries []cards.Metadata) (ImportStats, error) {
	var stats ImportStats
	start := time.Now()

	for i := 0; i < len(entries); i += r.batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := i + r.batchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[i:end]

		if err := r.importBatch(ctx, batch); err != nil {
			r.logger.Warn("card batch failed",
				zap.Int("offset", i),
				zap.Int("size", len(batch)),
				zap.Error(err),
			)
			stats.Failed += len(batch)
			continue
		}
		stats.Imported += len(batch)
		r.logger.Debug("card batch imported",
			zap.Int("imported", stats.Imported),
			zap.Int("total", len(entries)),
		)
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

func (r *CardRepository) importBatch(ctx context.Context, batch []cards.Metadata) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, m := range batch {
		var passcode *int64
		if m.Passcode != 0 {
			passcode = &m.Passcode
		}
		if _, err := tx.Exec(ctx, upsertCardSQL,
			passcode, m.Name, m.TypeLine, m.Attribute, m.Race,
			m.Level, m.Attack, m.Defense, m.Effect,
		); err != nil {
			return fmt.Errorf("failed to insert card %s: %w", m.Name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}
