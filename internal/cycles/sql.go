package cycles

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// SQLSource reads every row of one table. It expects the same columns as
// the spreadsheet export; all values are scanned as text.
//
// A table created by the import tool looks like:
//
//	CREATE TABLE cycles (
//	  "timestamp"  TEXT,
//	  "hb_jiduser" TEXT,
//	  ...
//	);
type SQLSource struct {
	db      *sql.DB
	name    string
	table   string
	options Options
}

// NewSQLSource wraps an open database. name distinguishes databases that
// share a table name in the memo key.
func NewSQLSource(db *sql.DB, name, table string, opts Options) *SQLSource {
	return &SQLSource{db: db, name: name, table: table, options: opts}
}

func (s *SQLSource) Key() string { return "sql:" + s.name + "#" + s.table }

func (s *SQLSource) Load(ctx context.Context) (*Table, error) {
	q := "SELECT * FROM " + QuoteIdent(s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sql source: query %s: %w", s.table, err)
	}
	defer rows.Close()

	header, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sql source: columns: %w", err)
	}

	var out [][]string
	cells := make([]sql.NullString, len(header))
	dest := make([]any, len(header))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("sql source: scan: %w", err)
		}
		row := make([]string, len(cells))
		for i, c := range cells {
			if c.Valid {
				row[i] = c.String
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sql source: iterate: %w", err)
	}
	return NewTable(header, out, s.options)
}

// QuoteIdent quotes a table or column name for SQLite and PostgreSQL.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SplitDSN maps a connection string to a registered driver name and the
// DSN that driver expects. postgres:// URLs go to pgx; sqlite:// URLs,
// file: URIs and bare paths go to sqlite3.
func SplitDSN(dsn string) (driver, conn string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn
	case strings.HasPrefix(dsn, "sqlite3://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite3://")
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", strings.TrimPrefix(dsn, "sqlite://")
	default:
		return "sqlite3", dsn
	}
}

// OpenDSN opens and pings the database a DSN points at.
func OpenDSN(ctx context.Context, dsn string) (*sql.DB, string, error) {
	driver, conn := SplitDSN(dsn)
	db, err := sql.Open(driver, conn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, driver, nil
}

// Placeholder returns the n-th (1-based) bind parameter for a driver.
func Placeholder(driver string, n int) string {
	if driver == "pgx" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
