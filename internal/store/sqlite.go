package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/seantiz/urlcheck/internal/model"

	_ "modernc.org/sqlite"
)

const createChecksTable = `
CREATE TABLE IF NOT EXISTS checks (
    id            TEXT PRIMARY KEY,
    status        TEXT NOT NULL,
    kind          TEXT NOT NULL,
    target        TEXT NOT NULL,
    query         TEXT NOT NULL DEFAULT '',
    max_redirects INTEGER,
    status_code   INTEGER,
    reachable     INTEGER,
    hops          INTEGER NOT NULL DEFAULT 0,
    error         TEXT NOT NULL DEFAULT '',
    duration_ms   INTEGER,
    created_at    DATETIME NOT NULL,
    started_at    DATETIME,
    finished_at   DATETIME
)`

const createHopLinesTable = `
CREATE TABLE IF NOT EXISTS hop_lines (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    check_id    TEXT NOT NULL,
    seq         INTEGER NOT NULL,
    path        TEXT NOT NULL,
    query       TEXT NOT NULL DEFAULT '',
    handler     TEXT NOT NULL,
    status_code INTEGER NOT NULL,
    location    TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL
)`

const createHopLinesIndex = `
CREATE INDEX IF NOT EXISTS idx_hop_lines_check_id ON hop_lines (check_id, seq)`

const checkColumns = `id, status, kind, target, query, max_redirects, status_code,
	reachable, hops, error, duration_ms, created_at, started_at, finished_at`

// ErrNotFound is returned when a check is not found.
var ErrNotFound = errors.New("check not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createChecksTable, createHopLinesTable, createHopLinesIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Ping verifies the database answers queries.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheck(row rowScanner) (*model.Check, error) {
	c := &model.Check{}
	err := row.Scan(
		&c.ID, &c.Status, &c.Kind, &c.Target, &c.Query, &c.MaxRedirects, &c.StatusCode,
		&c.Reachable, &c.Hops, &c.Error, &c.DurationMS, &c.CreatedAt, &c.StartedAt, &c.FinishedAt,
	)
	return c, err
}

// CreateCheck inserts a new check record.
func (s *SQLiteStore) CreateCheck(ctx context.Context, c *model.Check) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checks (`+checkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Status, c.Kind, c.Target, c.Query, c.MaxRedirects, c.StatusCode,
		c.Reachable, c.Hops, c.Error, c.DurationMS, c.CreatedAt, c.StartedAt, c.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

// GetCheck retrieves a check by ID.
func (s *SQLiteStore) GetCheck(ctx context.Context, id string) (*model.Check, error) {
	c, err := scanCheck(s.db.QueryRowContext(ctx,
		`SELECT `+checkColumns+` FROM checks WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get check: %w", err)
	}
	return c, nil
}

// ListChecks returns a paginated list of checks ordered by created_at DESC,
// along with the total count of all checks.
func (s *SQLiteStore) ListChecks(ctx context.Context, limit, offset int) ([]*model.Check, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM checks").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count checks: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+checkColumns+` FROM checks ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	var checks []*model.Check
	for rows.Next() {
		c, err := scanCheck(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan check: %w", err)
		}
		checks = append(checks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate checks: %w", err)
	}

	return checks, total, nil
}

// currentStatus must be called inside tx.
func currentStatus(ctx context.Context, tx *sql.Tx, id string) (string, error) {
	var status string
	err := tx.QueryRowContext(ctx, "SELECT status FROM checks WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get check status: %w", err)
	}
	return status, nil
}

// UpdateCheckStatus moves a check to status. Running sets started_at and the
// terminal statuses set finished_at.
func (s *SQLiteStore) UpdateCheckStatus(ctx context.Context, id, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	from, err := currentStatus(ctx, tx, id)
	if err != nil {
		return err
	}
	if !model.ValidTransition(from, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, status)
	}

	now := time.Now().UTC()
	switch status {
	case model.StatusRunning:
		_, err = tx.ExecContext(ctx,
			"UPDATE checks SET status = ?, started_at = ? WHERE id = ?",
			status, now, id,
		)
	case model.StatusCompleted, model.StatusFailed:
		_, err = tx.ExecContext(ctx,
			"UPDATE checks SET status = ?, finished_at = ? WHERE id = ?",
			status, now, id,
		)
	default:
		_, err = tx.ExecContext(ctx,
			"UPDATE checks SET status = ? WHERE id = ?",
			status, id,
		)
	}
	if err != nil {
		return fmt.Errorf("update check status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpdateCheck writes every mutable field of c. A status change must be a
// valid transition from the stored status.
func (s *SQLiteStore) UpdateCheck(ctx context.Context, c *model.Check) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	from, err := currentStatus(ctx, tx, c.ID)
	if err != nil {
		return err
	}
	if from != c.Status && !model.ValidTransition(from, c.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, c.Status)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE checks SET
			status = ?, status_code = ?, reachable = ?, hops = ?, error = ?,
			duration_ms = ?, started_at = ?, finished_at = ?
		WHERE id = ?`,
		c.Status, c.StatusCode, c.Reachable, c.Hops, c.Error,
		c.DurationMS, c.StartedAt, c.FinishedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update check: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteCheck removes a check and its hop lines.
func (s *SQLiteStore) DeleteCheck(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM checks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete check: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM hop_lines WHERE check_id = ?", id); err != nil {
		return fmt.Errorf("delete hop lines: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetCheckStats aggregates counts and the average duration of finished checks.
func (s *SQLiteStore) GetCheckStats(ctx context.Context) (*CheckStats, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	stats := &CheckStats{
		CountByStatus: make(map[string]int),
		CountByKind:   make(map[string]int),
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN reachable = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN reachable = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM checks`,
	).Scan(&stats.Total, &stats.Reachable, &stats.Unreachable, &stats.AvgDurationMS)
	if err != nil {
		return nil, fmt.Errorf("aggregate checks: %w", err)
	}

	if err := countBy(ctx, tx, "status", stats.CountByStatus); err != nil {
		return nil, err
	}
	if err := countBy(ctx, tx, "kind", stats.CountByKind); err != nil {
		return nil, err
	}

	return stats, nil
}

// countBy fills counts grouped by column, which must be a trusted column name.
func countBy(ctx context.Context, tx *sql.Tx, column string, counts map[string]int) error {
	rows, err := tx.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM checks GROUP BY "+column,
	)
	if err != nil {
		return fmt.Errorf("count checks by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		counts[key] = n
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s counts: %w", column, err)
	}
	return nil
}

// InsertHopLine persists one hop of a check and sets h.ID.
func (s *SQLiteStore) InsertHopLine(ctx context.Context, h *model.HopLine) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO hop_lines (
			check_id, seq, path, query, handler, status_code, location, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		h.CheckID, h.Seq, h.Path, h.Query, h.Handler, h.StatusCode, h.Location, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert hop line: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("hop line id: %w", err)
	}
	h.ID = id
	return nil
}

// GetHopLines returns the hops of a check ordered by seq. A check without
// hops yields an empty, non-nil slice.
func (s *SQLiteStore) GetHopLines(ctx context.Context, checkID string) ([]model.HopLine, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, check_id, seq, path, query, handler, status_code, location, created_at
		FROM hop_lines WHERE check_id = ? ORDER BY seq ASC`, checkID,
	)
	if err != nil {
		return nil, fmt.Errorf("get hop lines: %w", err)
	}
	defer rows.Close()

	hops := []model.HopLine{}
	for rows.Next() {
		var h model.HopLine
		if err := rows.Scan(
			&h.ID, &h.CheckID, &h.Seq, &h.Path, &h.Query, &h.Handler, &h.StatusCode, &h.Location, &h.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan hop line: %w", err)
		}
		hops = append(hops, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hop lines: %w", err)
	}
	return hops, nil
}
