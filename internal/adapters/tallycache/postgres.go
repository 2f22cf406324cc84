package tallycache

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/seasonboard/internal/domain/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS vote_tally_cache (
	season_number BIGINT        NOT NULL,
	item_id       TEXT          NOT NULL,
	total_votes   NUMERIC(78,0) NOT NULL,
	voter_count   BIGINT        NOT NULL DEFAULT 0,
	cached_at     TIMESTAMPTZ   NOT NULL,
	PRIMARY KEY (season_number, item_id)
)`

const upsertTally = `
INSERT INTO vote_tally_cache (season_number, item_id, total_votes, voter_count, cached_at)
VALUES ($1, $2, $3::numeric, $4, $5)
ON CONFLICT (season_number, item_id) DO UPDATE
SET total_votes = EXCLUDED.total_votes,
    voter_count = EXCLUDED.voter_count,
    cached_at   = EXCLUDED.cached_at`

// PostgresStore keeps tallies in a shared Postgres table so several service
// instances heal the same entries.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Compile-time interface check
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn and ensures the cache table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrStoreUnavailable, err)
	}
	s := &PostgresStore{pool: pool}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: migrate: %w", ErrStoreUnavailable, err)
	}
	return s, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() { s.pool.Close() }

func (s *PostgresStore) Get(ctx context.Context, key Key) (model.VoteTally, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT item_id, total_votes::text, voter_count, cached_at
		   FROM vote_tally_cache WHERE season_number = $1 AND item_id = $2`,
		int64(key.Season), key.ItemID)
	t, err := scanTally(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.VoteTally{}, false, nil
	}
	if err != nil {
		return model.VoteTally{}, false, fmt.Errorf("%w: get %s: %w", ErrStoreUnavailable, key, err)
	}
	return t, true, nil
}

func (s *PostgresStore) GetMany(ctx context.Context, season uint64, itemIDs []string) (map[string]model.VoteTally, error) {
	out := make(map[string]model.VoteTally, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT item_id, total_votes::text, voter_count, cached_at
		   FROM vote_tally_cache WHERE season_number = $1 AND item_id = ANY($2)`,
		int64(season), itemIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: get many: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		t, err := scanTally(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrStoreUnavailable, err)
		}
		out[t.ItemID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: get many: %w", ErrStoreUnavailable, err)
	}
	return out, nil
}

func (s *PostgresStore) PutMany(ctx context.Context, season uint64, tallies []model.VoteTally) error {
	if len(tallies) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range tallies {
		votes := "0"
		if t.Votes != nil {
			votes = t.Votes.String()
		}
		batch.Queue(upsertTally, int64(season), t.ItemID, votes, t.VoterCount, t.CachedAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range tallies {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: upsert: %w", ErrStoreUnavailable, err)
		}
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, itemIDs ...string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM vote_tally_cache WHERE item_id = ANY($1)`, itemIDs); err != nil {
		return fmt.Errorf("%w: delete: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Purge(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM vote_tally_cache`); err != nil {
		return fmt.Errorf("%w: purge: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM vote_tally_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrStoreUnavailable, err)
	}
	return n, nil
}

func scanTally(row pgx.Row) (model.VoteTally, error) {
	var (
		t        model.VoteTally
		votes    string
		cachedAt time.Time
	)
	if err := row.Scan(&t.ItemID, &votes, &t.VoterCount, &cachedAt); err != nil {
		return model.VoteTally{}, err
	}
	v, ok := new(big.Int).SetString(votes, 10)
	if !ok {
		return model.VoteTally{}, fmt.Errorf("bad total_votes %q", votes)
	}
	t.Votes = v
	t.CachedAt = cachedAt.UTC()
	return t, nil
}
