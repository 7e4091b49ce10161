package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/nidhogg/nuka-mind/internal/concept"
	"github.com/nidhogg/nuka-mind/internal/subcon"
)

// Subconscious is a subcon.Cache backed by the subconscious table. With
// MaxItems set, each Add trims the lowest priority rows, oldest first.
type Subconscious struct {
	db     *pgxpool.Pool
	opts   subcon.Options
	logger *zap.Logger
}

var (
	_ subcon.Cache = (*Subconscious)(nil)
	_ subcon.Lener = (*Subconscious)(nil)
)

// Subconscious returns a cache sharing the store's pool.
func (s *Store) Subconscious(opts subcon.Options) *Subconscious {
	return &Subconscious{db: s.db, opts: opts, logger: s.logger}
}

func (p *Subconscious) Add(ctx context.Context, c *concept.Concept) error {
	data, err := concept.Encode(c)
	if err != nil {
		return err
	}
	term := string(c.Term())

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin subconscious add: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO subconscious (term, snapshot, priority, stored_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (term) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			priority = EXCLUDED.priority,
			stored_at = EXCLUDED.stored_at`,
		term, string(data), c.Budget().Priority,
	)
	if err != nil {
		return fmt.Errorf("store concept %s: %w", term, err)
	}

	var trimmed []trimmedRow
	if p.opts.MaxItems > 0 {
		trimmed, err = trim(ctx, tx, p.opts.MaxItems)
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit subconscious add: %w", err)
	}

	rejected := false
	for _, row := range trimmed {
		if row.term == term {
			rejected = true
			continue
		}
		evicted, err := concept.Decode(row.snapshot, p.opts.Params)
		if err != nil {
			p.logger.Warn("decode trimmed concept", zap.String("term", row.term), zap.Error(err))
			continue
		}
		if p.opts.OnEvict != nil {
			p.opts.OnEvict(evicted)
		}
	}
	if rejected {
		return subcon.ErrRejected
	}
	return nil
}

type trimmedRow struct {
	term     string
	snapshot []byte
}

func trim(ctx context.Context, tx pgx.Tx, maxItems int) ([]trimmedRow, error) {
	rows, err := tx.Query(ctx, `
		DELETE FROM subconscious
		WHERE term IN (
			SELECT term FROM subconscious
			ORDER BY priority ASC, stored_at ASC
			LIMIT GREATEST((SELECT count(*) FROM subconscious) - $1, 0)
		)
		RETURNING term, snapshot`, maxItems)
	if err != nil {
		return nil, fmt.Errorf("trim subconscious: %w", err)
	}
	defer rows.Close()

	var out []trimmedRow
	for rows.Next() {
		var r trimmedRow
		if err := rows.Scan(&r.term, &r.snapshot); err != nil {
			return nil, fmt.Errorf("scan trimmed concept: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Subconscious) Take(ctx context.Context, term concept.Term) (*concept.Concept, error) {
	var data []byte
	err := p.db.QueryRow(ctx,
		`DELETE FROM subconscious WHERE term = $1 RETURNING snapshot`, string(term),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, subcon.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("take concept %s: %w", term, err)
	}
	return concept.Decode(data, p.opts.Params)
}

func (p *Subconscious) Len(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRow(ctx, `SELECT count(*) FROM subconscious`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subconscious: %w", err)
	}
	return n, nil
}
