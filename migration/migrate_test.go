package main

import (
	"context"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/community-scripts/ftt-cycle-dashboard/internal/cycles"
)

func TestImporterCreateAndInsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	tbl, err := cycles.NewTable(
		[]string{"timestamp", "hb_jiduser", "cycle_ms"},
		[][]string{
			{"2025-11-03 09:30:00.125", "M1", "412"},
			{"2025-11-03 09:31:00", "M2", "398"},
			{"broken", "M3", "1"},
			{"2025-11-04 08:00:00", "M1", ""},
		},
		cycles.Options{},
	)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "cycles"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "cycles" ("timestamp" TEXT, "hb_jiduser" TEXT, "cycle_ms" TEXT)`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	insert := regexp.QuoteMeta(`INSERT INTO "cycles" ("timestamp", "hb_jiduser", "cycle_ms") VALUES ($1, $2, $3)`)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(insert)
	prep.ExpectExec().WithArgs("2025-11-03T09:30:00.125Z", "M1", "412").WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("2025-11-03T09:31:00Z", "M2", "398").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectPrepare(insert).ExpectExec().
		WithArgs("2025-11-04T08:00:00Z", "M1", "").WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectCommit()

	imp := &importer{db: db, driver: "pgx", table: "cycles", batchSize: 2}
	if err := imp.createTable(context.Background(), tbl.Columns, true); err != nil {
		t.Fatalf("createTable: %v", err)
	}

	var progress []int
	n, err := imp.insert(context.Background(), tbl, func(done int) { progress = append(progress, done) })
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
	if !reflect.DeepEqual(progress, []int{2, 3}) {
		t.Fatalf("unexpected progress %v", progress)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestImporterRollsBackFailedBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	tbl, err := cycles.NewTable([]string{"timestamp", "hb_jiduser"}, [][]string{{"2025-11-03", "M1"}}, cycles.Options{})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectPrepare(regexp.QuoteMeta(`INSERT INTO "cycles"`)).ExpectExec().
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	imp := &importer{db: db, driver: "sqlite3", table: "cycles", batchSize: 10, columns: tbl.Columns}
	n, err := imp.insert(context.Background(), tbl, nil)
	if err == nil || n != 0 {
		t.Fatalf("expected failure with 0 rows, got n=%d err=%v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestColumnNames(t *testing.T) {
	tests := []struct {
		header []string
		want   []string
	}{
		{
			[]string{"timestamp", "", "Value", "value", " hb_jiduser "},
			[]string{"timestamp", "column_2", "Value", "value_2", "hb_jiduser"},
		},
		{
			[]string{"a", "a", "a_2"},
			[]string{"a", "a_2", "a_2_2"},
		},
		{
			[]string{"x_2", "x", "x"},
			[]string{"x_2", "x", "x_3"},
		},
	}
	for _, tc := range tests {
		if got := columnNames(tc.header); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("columnNames(%q) = %v, want %v", tc.header, got, tc.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(90 * time.Second); got != "1m 30s" {
		t.Fatalf("formatDuration = %q", got)
	}
	if got := formatDuration(2*time.Hour + 5*time.Second); got != "2h 0m 5s" {
		t.Fatalf("formatDuration = %q", got)
	}
}
