package subcon

import (
	"context"
	"errors"
	"fmt"

	"github.com/nidhogg/nuka-mind/internal/concept"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "nuka:subcon:"
	indexKey  = "nuka:subcon-index"
)

// Redis keeps concept snapshots in Redis. A sorted set scored by priority
// tracks membership so MaxItems can drop the weakest concepts first.
type Redis struct {
	rdb    *redis.Client
	opts   Options
	logger *zap.Logger
}

var (
	_ Cache = (*Redis)(nil)
	_ Lener = (*Redis)(nil)
)

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, opts Options, logger *zap.Logger) *Redis {
	return &Redis{rdb: rdb, opts: opts, logger: logger}
}

func (r *Redis) Add(ctx context.Context, c *concept.Concept) error {
	data, err := concept.Encode(c)
	if err != nil {
		return err
	}
	term := string(c.Term())
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+term, data, r.opts.TTL)
		pipe.ZAdd(ctx, indexKey, redis.Z{Score: c.Budget().Priority, Member: term})
		return nil
	})
	if err != nil {
		return fmt.Errorf("store concept %s: %w", term, err)
	}

	if r.opts.MaxItems <= 0 {
		return nil
	}
	return r.trim(ctx, term)
}

// trim pops the lowest scored terms until the index fits MaxItems.
func (r *Redis) trim(ctx context.Context, added string) error {
	n, err := r.rdb.ZCard(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("count subconscious: %w", err)
	}
	over := n - int64(r.opts.MaxItems)
	if over <= 0 {
		return nil
	}
	popped, err := r.rdb.ZPopMin(ctx, indexKey, over).Result()
	if err != nil {
		return fmt.Errorf("trim subconscious: %w", err)
	}

	rejected := false
	for _, z := range popped {
		term, _ := z.Member.(string)
		data, err := r.rdb.GetDel(ctx, keyPrefix+term).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				r.logger.Warn("drop trimmed concept", zap.String("term", term), zap.Error(err))
			}
			continue
		}
		if term == added {
			rejected = true
			continue
		}
		c, err := concept.Decode(data, r.opts.Params)
		if err != nil {
			r.logger.Warn("decode trimmed concept", zap.String("term", term), zap.Error(err))
			continue
		}
		r.opts.evicted(c)
	}
	if rejected {
		return ErrRejected
	}
	return nil
}

func (r *Redis) Take(ctx context.Context, term concept.Term) (*concept.Concept, error) {
	data, err := r.rdb.GetDel(ctx, keyPrefix+string(term)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("take concept %s: %w", term, err)
	}
	// An expired snapshot leaves its index entry behind; drop it either way.
	if zerr := r.rdb.ZRem(ctx, indexKey, string(term)).Err(); zerr != nil {
		r.logger.Warn("remove subconscious index entry", zap.String("term", string(term)), zap.Error(zerr))
	}
	if err != nil {
		return nil, ErrNotFound
	}
	return concept.Decode(data, r.opts.Params)
}

// Len reports the index size. Entries whose snapshot expired through TTL
// are counted until a Take or trim drops them.
func (r *Redis) Len(ctx context.Context) (int, error) {
	n, err := r.rdb.ZCard(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count subconscious: %w", err)
	}
	return int(n), nil
}
