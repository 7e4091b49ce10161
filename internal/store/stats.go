package store

import (
	"context"
	"fmt"
	"time"
)

// StatsRow is one periodic sample of memory state.
type StatsRow struct {
	Cycle        int64     `json:"cycle"`
	Concepts     int       `json:"concepts"`
	Mass         float64   `json:"mass"`
	Subconscious int       `json:"subconscious"`
	Fired        int64     `json:"fired"`
	Forgotten    int64     `json:"forgotten"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// RecordStats appends a sample.
func (s *Store) RecordStats(ctx context.Context, r StatsRow) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO memory_stats (cycle, concepts, mass, subconscious, fired, forgotten)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.Cycle, r.Concepts, r.Mass, r.Subconscious, r.Fired, r.Forgotten,
	)
	if err != nil {
		return fmt.Errorf("record stats at cycle %d: %w", r.Cycle, err)
	}
	return nil
}

// RecentStats returns the newest samples, newest first.
func (s *Store) RecentStats(ctx context.Context, limit int) ([]StatsRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT cycle, concepts, mass, subconscious, fired, forgotten, recorded_at
		FROM memory_stats
		ORDER BY recorded_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent stats: %w", err)
	}
	defer rows.Close()

	var out []StatsRow
	for rows.Next() {
		var r StatsRow
		if err := rows.Scan(&r.Cycle, &r.Concepts, &r.Mass, &r.Subconscious, &r.Fired, &r.Forgotten, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
