// Package cycles loads machine-cycle records from spreadsheets and SQL
// tables and derives the filtered views and aggregates the dashboard shows.
package cycles

import (
	"errors"
	"sort"
	"time"
)

// Default column names of the anonymized cycle export.
const (
	DefaultTimestampColumn = "timestamp"
	DefaultMachineColumn   = "hb_jiduser"
)

// DisplayLayout is how parsed timestamps are shown in the data table.
const DisplayLayout = "2006-01-02 15:04:05"

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrUnknownSheet  = errors.New("sheet not found")
	ErrNoHeader      = errors.New("no header row")
)

// Record is one cycle observation. Values holds every cell of the row in
// header order; the timestamp cell is replaced by its parsed form. Row is
// the 0-based position of the row among the non-blank data rows of the
// source, so it survives dropped timestamps and filtering.
type Record struct {
	Row       int       `json:"row"`
	Machine   string    `json:"machine"`
	Timestamp time.Time `json:"timestamp"`
	Values    []string  `json:"values"`
}

// Table is the loaded record set. It is never modified after load and may
// be shared between goroutines.
type Table struct {
	Columns        []string `json:"columns"`
	Records        []Record `json:"records"`
	TimestampIndex int      `json:"timestamp_index"`
	MachineIndex   int      `json:"machine_index"`
}

// Options names the two columns the loader interprets.
type Options struct {
	TimestampColumn string
	MachineColumn   string
}

func (o Options) withDefaults() Options {
	if o.TimestampColumn == "" {
		o.TimestampColumn = DefaultTimestampColumn
	}
	if o.MachineColumn == "" {
		o.MachineColumn = DefaultMachineColumn
	}
	return o
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// Machines returns the distinct machine ids, sorted.
func (t *Table) Machines() []string {
	return distinctMachines(t.Records)
}

// Bounds returns the earliest and latest timestamp. ok is false for an
// empty table.
func (t *Table) Bounds() (first, last time.Time, ok bool) {
	return timeBounds(t.Records)
}

func distinctMachines(records []Record) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for i := range records {
		m := records[i].Machine
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func timeBounds(records []Record) (first, last time.Time, ok bool) {
	if len(records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = records[0].Timestamp, records[0].Timestamp
	for i := 1; i < len(records); i++ {
		ts := records[i].Timestamp
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	return first, last, true
}
