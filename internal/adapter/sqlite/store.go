// Package sqlite persists normalized observation rows into a local SQLite
// database. The observation table's column set is dynamic: new value columns
// appear as later retrievals introduce new parameter/statistic pairs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wanluwen/dataRetrieval/internal/waterml"
)

const tableName = "observations"

// Store wraps the database connection. It implements pipeline.Sink.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load appends every wide-table row of the result, adding columns to the
// observation table as needed. Rows insert inside one transaction so a failed
// batch leaves no partial data behind.
func (s *Store) Load(ctx context.Context, res *waterml.Result) error {
	if res.Table.Len() == 0 {
		return nil
	}
	cols := res.Table.Columns()
	cols = append(cols, "source", "retrieved_at")

	if err := s.ensureColumns(ctx, cols); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, joinQuoted(cols), placeholders)

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < res.Table.Len(); i++ {
		args := make([]any, 0, len(cols))
		for _, c := range res.Table.Columns() {
			v, ok := res.Table.Value(i, c)
			if !ok {
				args = append(args, nil)
				continue
			}
			args = append(args, sqlValue(v))
		}
		args = append(args, res.Source, res.RetrievedAt.Format(time.RFC3339))

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert observation row: %w", err)
		}
	}
	return tx.Commit()
}

// ensureColumns creates the table on first use and adds any columns this
// result introduces.
func (s *Store) ensureColumns(ctx context.Context, cols []string) error {
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tableName, joinQuoted(cols))
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create observation table: %w", err)
	}

	existing, err := s.tableColumns(ctx)
	if err != nil {
		return err
	}
	for _, c := range cols {
		if _, ok := existing[c]; ok {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %q", tableName, c)
		if _, err := s.db.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("add column %q: %w", c, err)
		}
		s.logger.Debug("added observation column", "column", c)
	}
	return nil
}

func (s *Store) tableColumns(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, fmt.Errorf("inspect observation table: %w", err)
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			dflt       sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &primaryKey); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		out[name] = struct{}{}
	}
	return out, rows.Err()
}

// sqlValue maps cell values to driver-friendly ones: NaN readings store as
// NULL and timestamps as RFC 3339 text.
func sqlValue(v any) any {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) {
			return nil
		}
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return v
	}
}

func joinQuoted(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return strings.Join(quoted, ", ")
}
