package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/okian/seasonboard/internal/domain/model"
	"github.com/okian/seasonboard/pkg/metrics"
)

// SQLStore is a Store over database/sql. Vote amounts are stored as decimal
// text and timestamps as unix milliseconds so both dialects share a schema.
type SQLStore struct {
	db        *sql.DB
	dialect   Dialect
	batchSize int
}

// Compile-time interface check
var _ Store = (*SQLStore)(nil)

// Open connects with the driver named by dialect and migrates the schema.
func Open(ctx context.Context, dialect Dialect, dsn string, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// one writer; also keeps a :memory: database alive across calls
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	s, err := NewSQLStore(ctx, db, dialect, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database and migrates the schema.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect, batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return s, nil
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) HasSeason(ctx context.Context, season uint64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.dialect.rebind(`SELECT COUNT(*) FROM finalized_period WHERE season_number = ?`),
		int64(season)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has season %d: %w", season, err)
	}
	return n > 0, nil
}

func (s *SQLStore) Save(ctx context.Context, meta model.FinalizedPeriodMetadata, rows []model.FinalizedSnapshotRow) error {
	return s.save(ctx, meta, rows, false)
}

func (s *SQLStore) Replace(ctx context.Context, meta model.FinalizedPeriodMetadata, rows []model.FinalizedSnapshotRow) error {
	return s.save(ctx, meta, rows, true)
}

func (s *SQLStore) save(ctx context.Context, meta model.FinalizedPeriodMetadata, rows []model.FinalizedSnapshotRow, replace bool) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if replace {
		for _, table := range []string{"finalized_snapshot", "finalized_period"} {
			if _, err = tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM `+table+` WHERE season_number = ?`),
				int64(meta.SeasonNumber)); err != nil {
				return fmt.Errorf("replace season %d: %w", meta.SeasonNumber, err)
			}
		}
	}

	_, err = tx.ExecContext(ctx, s.dialect.rebind(`INSERT INTO finalized_period
		(season_number, start_time, end_time, total_votes, total_items_count,
		 top_item_id, top_item_votes, finalized_at, snapshot_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		int64(meta.SeasonNumber), toMillis(meta.StartTime), toMillis(meta.EndTime),
		bigText(meta.TotalVotes), meta.TotalItemsCount, meta.TopItemID,
		bigText(meta.TopItemVotes), toMillis(meta.FinalizedAt), meta.SnapshotHash)
	if err != nil {
		return s.insertError(meta.SeasonNumber, err)
	}

	for start := 0; start < len(rows); start += s.batchSize {
		end := min(start+s.batchSize, len(rows))
		if err = s.insertRows(ctx, tx, rows[start:end]); err != nil {
			return s.insertError(meta.SeasonNumber, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return s.insertError(meta.SeasonNumber, err)
	}
	metrics.RecordSnapshotRowsWritten(len(rows))
	return nil
}

func (s *SQLStore) insertRows(ctx context.Context, tx *sql.Tx, rows []model.FinalizedSnapshotRow) error {
	var b strings.Builder
	b.WriteString(`INSERT INTO finalized_snapshot
		(season_number, item_id, final_rank, total_votes, percentage_of_total, finalized_at, snapshot_hash)
		VALUES `)
	args := make([]interface{}, 0, len(rows)*7)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, int64(r.SeasonNumber), r.ItemID, r.FinalRank, bigText(r.TotalVotes),
			r.PercentageOfTotal, toMillis(r.FinalizedAt), r.SnapshotHash)
	}
	_, err := tx.ExecContext(ctx, s.dialect.rebind(b.String()), args...)
	return err
}

func (s *SQLStore) insertError(season uint64, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: season %d: %w", ErrDuplicateFinalization, season, err)
	}
	return fmt.Errorf("save season %d: %w", season, err)
}

func (s *SQLStore) Metadata(ctx context.Context, season uint64) (model.FinalizedPeriodMetadata, error) {
	var (
		m                              model.FinalizedPeriodMetadata
		seasonNum, start, end, finalAt int64
		total, topVotes                string
	)
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT
		season_number, start_time, end_time, total_votes, total_items_count,
		top_item_id, top_item_votes, finalized_at, snapshot_hash
		FROM finalized_period WHERE season_number = ?`), int64(season)).
		Scan(&seasonNum, &start, &end, &total, &m.TotalItemsCount, &m.TopItemID, &topVotes, &finalAt, &m.SnapshotHash)
	if errors.Is(err, sql.ErrNoRows) {
		return m, fmt.Errorf("%w: season %d", ErrNotFound, season)
	}
	if err != nil {
		return m, fmt.Errorf("metadata season %d: %w", season, err)
	}
	m.SeasonNumber = uint64(seasonNum)
	m.StartTime = fromMillis(start)
	m.EndTime = fromMillis(end)
	m.FinalizedAt = fromMillis(finalAt)
	if m.TotalVotes, err = parseBig(total); err != nil {
		return m, err
	}
	if m.TopItemVotes, err = parseBig(topVotes); err != nil {
		return m, err
	}
	return m, nil
}

func (s *SQLStore) Rows(ctx context.Context, season uint64) ([]model.FinalizedSnapshotRow, error) {
	rs, err := s.db.QueryContext(ctx, s.dialect.rebind(`SELECT
		season_number, item_id, final_rank, total_votes, percentage_of_total, finalized_at, snapshot_hash
		FROM finalized_snapshot WHERE season_number = ? ORDER BY final_rank ASC`), int64(season))
	if err != nil {
		return nil, fmt.Errorf("rows season %d: %w", season, err)
	}
	defer rs.Close()

	var out []model.FinalizedSnapshotRow
	for rs.Next() {
		var (
			r                  model.FinalizedSnapshotRow
			seasonNum, finalAt int64
			votes              string
		)
		if err := rs.Scan(&seasonNum, &r.ItemID, &r.FinalRank, &votes, &r.PercentageOfTotal, &finalAt, &r.SnapshotHash); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.SeasonNumber = uint64(seasonNum)
		r.FinalizedAt = fromMillis(finalAt)
		if r.TotalVotes, err = parseBig(votes); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

func (s *SQLStore) Seasons(ctx context.Context) ([]uint64, error) {
	rs, err := s.db.QueryContext(ctx, `SELECT season_number FROM finalized_period ORDER BY season_number ASC`)
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	defer rs.Close()
	var out []uint64
	for rs.Next() {
		var n int64
		if err := rs.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan season: %w", err)
		}
		out = append(out, uint64(n))
	}
	return out, rs.Err()
}

func (s *SQLStore) DeleteSeason(ctx context.Context, season uint64) (bool, error) {
	n, err := s.deleteWhere(ctx, "season_number = ?", int64(season))
	return n > 0, err
}

func (s *SQLStore) DeleteBefore(ctx context.Context, season uint64) (int64, error) {
	return s.deleteWhere(ctx, "season_number < ?", int64(season))
}

// deleteWhere removes rows then metadata in one transaction and returns the
// number of seasons removed.
func (s *SQLStore) deleteWhere(ctx context.Context, cond string, arg interface{}) (n int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM finalized_snapshot WHERE `+cond), arg); err != nil {
		return 0, fmt.Errorf("delete rows: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.dialect.rebind(`DELETE FROM finalized_period WHERE `+cond), arg)
	if err != nil {
		return 0, fmt.Errorf("delete periods: %w", err)
	}
	if n, err = res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	metrics.RecordSnapshotsDeleted(n)
	return n, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func bigText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid vote amount %q", s)
	}
	return v, nil
}
