// Package report projects rating state into JSON files, one ladder and
// one history file per pool. Formatting beyond plain JSON is out of
// scope here; downstream tooling renders these however it likes.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"squadron-stats/internal/domain"
	"squadron-stats/internal/rating"
)

type Writer struct {
	dir    string
	logger zerolog.Logger
}

func NewWriter(dir string, logger zerolog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// WriteAll writes every pool's ladder and history. Files are independent,
// so they are written concurrently.
func (w *Writer) WriteAll(ctx context.Context, entries []domain.RatingEntry, history []domain.RatingHistoryEvent) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}

	ladders := make(map[domain.PoolKey][]domain.LadderRow)
	for pool, poolEntries := range rating.GroupEntries(entries) {
		ladders[pool] = rating.BuildLadder(poolEntries)
	}
	histories := make(map[domain.PoolKey][]domain.RatingHistoryEvent)
	for _, ev := range history {
		histories[ev.Pool] = append(histories[ev.Pool], ev)
	}

	g, _ := errgroup.WithContext(ctx)
	for pool, rows := range ladders {
		g.Go(func() error {
			return w.writeJSON(poolFilename(pool, "elo_ladder"), rows)
		})
	}
	for pool, events := range histories {
		g.Go(func() error {
			return w.writeJSON(poolFilename(pool, "elo_history"), events)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w.logger.Info().
		Str("dir", w.dir).
		Int("pools", len(ladders)).
		Msg("reports written")
	return nil
}

func (w *Writer) writeJSON(name string, v any) error {
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func poolFilename(pool domain.PoolKey, suffix string) string {
	return strings.ReplaceAll(pool.String(), "/", "_") + "_" + suffix + ".json"
}
