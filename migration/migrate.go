// Import script to copy a cycle spreadsheet into a SQL table that the
// dashboard can serve with DATA_DSN.
// Run with: go run ./migration
//
// Environment variables:
//   SOURCE_PATH      - Workbook or .csv to import (default: FTT Cycle Data 202511_anonymization.xlsx)
//   SOURCE_SHEET     - Sheet name (default: anonymized_data)
//   TARGET_DSN       - sqlite path, sqlite:// or postgres:// URL (required)
//   TARGET_TABLE     - Target table (default: cycles)
//   BATCH_SIZE       - Rows per transaction (default: 500)
//   DROP_EXISTING    - Drop the target table first (default: false)
//   TIMESTAMP_COLUMN - Timestamp column (default: timestamp)
//   MACHINE_COLUMN   - Machine column (default: hb_jiduser)
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/community-scripts/ftt-cycle-dashboard/internal/cycles"
)

const (
	defaultSourcePath = "FTT Cycle Data 202511_anonymization.xlsx"
	defaultSheet      = "anonymized_data"
	defaultTable      = "cycles"
	defaultBatchSize  = 500
)

func main() {
	sourcePath := envOr("SOURCE_PATH", defaultSourcePath)
	sheet := envOr("SOURCE_SHEET", defaultSheet)
	table := envOr("TARGET_TABLE", defaultTable)
	dsn := os.Getenv("TARGET_DSN")
	if dsn == "" {
		fmt.Println("[ERROR] TARGET_DSN is required")
		os.Exit(1)
	}

	batchSize := defaultBatchSize
	if bs := os.Getenv("BATCH_SIZE"); bs != "" {
		n, err := strconv.Atoi(bs)
		if err != nil || n < 1 {
			fmt.Printf("[ERROR] Invalid BATCH_SIZE %q\n", bs)
			os.Exit(1)
		}
		batchSize = n
	}
	drop := strings.EqualFold(os.Getenv("DROP_EXISTING"), "true")

	opts := cycles.Options{
		TimestampColumn: os.Getenv("TIMESTAMP_COLUMN"),
		MachineColumn:   os.Getenv("MACHINE_COLUMN"),
	}

	ctx := context.Background()
	start := time.Now()

	fmt.Printf("[INFO] Reading %s (sheet %s)\n", sourcePath, sheet)
	t, err := cycles.NewLoader(nil, 0).LoadSpreadsheet(ctx, sourcePath, sheet, opts)
	if err != nil {
		fmt.Printf("[ERROR] %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("[INFO] %d records with valid timestamps, %d machines\n", t.Len(), len(t.Machines()))

	db, driver, err := cycles.OpenDSN(ctx, dsn)
	if err != nil {
		fmt.Printf("[ERROR] %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	imp := &importer{db: db, driver: driver, table: table, batchSize: batchSize}
	if err := imp.createTable(ctx, t.Columns, drop); err != nil {
		fmt.Printf("[ERROR] %v\n", err)
		os.Exit(1)
	}
	n, err := imp.insert(ctx, t, func(done int) {
		fmt.Printf("[INFO] %d/%d rows imported\n", done, t.Len())
	})
	if err != nil {
		fmt.Printf("[ERROR] after %d rows: %v\n", n, err)
		os.Exit(1)
	}

	fmt.Printf("\n[DONE] Imported %d rows into %s.%s in %s\n", n, driver, table, formatDuration(time.Since(start)))
	fmt.Printf("   Serve them with: DATA_DSN=%q DATA_TABLE=%q\n", dsn, table)
}

type importer struct {
	db        *sql.DB
	driver    string
	table     string
	batchSize int
	columns   []string
}

// createTable creates the target with one TEXT column per header cell.
func (im *importer) createTable(ctx context.Context, header []string, drop bool) error {
	im.columns = columnNames(header)

	if drop {
		if _, err := im.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+cycles.QuoteIdent(im.table)); err != nil {
			return fmt.Errorf("drop %s: %w", im.table, err)
		}
	}

	defs := make([]string, len(im.columns))
	for i, c := range im.columns {
		defs[i] = cycles.QuoteIdent(c) + " TEXT"
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", cycles.QuoteIdent(im.table), strings.Join(defs, ", "))
	if _, err := im.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create %s: %w", im.table, err)
	}
	return nil
}

// insert writes all records in batches of batchSize, one transaction per
// batch. It returns the number of committed rows.
func (im *importer) insert(ctx context.Context, t *cycles.Table, progress func(done int)) (int, error) {
	quoted := make([]string, len(im.columns))
	marks := make([]string, len(im.columns))
	for i, c := range im.columns {
		quoted[i] = cycles.QuoteIdent(c)
		marks[i] = cycles.Placeholder(im.driver, i+1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		cycles.QuoteIdent(im.table), strings.Join(quoted, ", "), strings.Join(marks, ", "))

	done := 0
	for from := 0; from < t.Len(); from += im.batchSize {
		to := min(from+im.batchSize, t.Len())
		if err := im.insertBatch(ctx, stmt, t, t.Records[from:to]); err != nil {
			return done, err
		}
		done = to
		if progress != nil {
			progress(done)
		}
	}
	return done, nil
}

func (im *importer) insertBatch(ctx context.Context, stmt string, t *cycles.Table, batch []cycles.Record) error {
	tx, err := im.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer prepared.Close()

	args := make([]any, len(im.columns))
	for _, r := range batch {
		for i := range args {
			args[i] = r.Values[i]
		}
		// Store the full-precision timestamp rather than the display form.
		args[t.TimestampIndex] = r.Timestamp.Format(time.RFC3339Nano)
		if _, err := prepared.ExecContext(ctx, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// columnNames fills blank header cells and disambiguates duplicates so the
// header can be used as SQL column names. Names compare case-insensitively.
func columnNames(header []string) []string {
	out := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	for i, h := range header {
		base := strings.TrimSpace(h)
		if base == "" {
			base = fmt.Sprintf("column_%d", i+1)
		}
		name := base
		for n := 2; taken[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		taken[strings.ToLower(name)] = true
		out[i] = name
	}
	return out
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "calculating..."
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
