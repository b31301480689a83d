package cycles

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Source produces a Table. Key identifies the source for memoization.
type Source interface {
	Key() string
	Load(ctx context.Context) (*Table, error)
}

// Fingerprinter is implemented by sources that can tell when their
// underlying data changed. Only fingerprinted sources are snapshotted.
type Fingerprinter interface {
	Fingerprint() (string, error)
}

// NewSpreadsheetSource picks the reader from the file extension: .csv
// files are read as text, anything else as a workbook.
func NewSpreadsheetSource(path, sheet string, opts Options) Source {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return &CSVSource{Path: path, Options: opts}
	}
	return &XLSXSource{Path: path, Sheet: sheet, Options: opts}
}

// NewTable builds a Table from a header and text rows, dropping rows whose
// timestamp does not parse.
func NewTable(header []string, rows [][]string, opts Options) (*Table, error) {
	return buildTable(header, rows, opts, ParseTimestamp)
}

func buildTable(header []string, rows [][]string, opts Options, parse func(string) (time.Time, bool)) (*Table, error) {
	opts = opts.withDefaults()
	if len(header) == 0 {
		return nil, ErrNoHeader
	}

	cols := make([]string, len(header))
	tsIdx, mIdx := -1, -1
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		cols[i] = name
		if name == opts.TimestampColumn && tsIdx < 0 {
			tsIdx = i
		}
		if name == opts.MachineColumn && mIdx < 0 {
			mIdx = i
		}
	}
	if tsIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, opts.TimestampColumn)
	}
	if mIdx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, opts.MachineColumn)
	}

	t := &Table{
		Columns:        cols,
		Records:        make([]Record, 0, len(rows)),
		TimestampIndex: tsIdx,
		MachineIndex:   mIdx,
	}
	pos := -1
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		pos++
		values := make([]string, len(cols))
		copy(values, row)

		ts, ok := parse(values[tsIdx])
		if !ok {
			continue
		}
		values[tsIdx] = ts.Format(DisplayLayout)
		t.Records = append(t.Records, Record{
			Row:       pos,
			Machine:   values[mIdx],
			Timestamp: ts,
			Values:    values,
		})
	}
	return t, nil
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func fileFingerprint(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d:%d", fi.Size(), fi.ModTime().UnixNano()), nil
}

// XLSXSource reads one sheet of a workbook. Cells are read raw so date
// cells arrive as serial numbers regardless of their display format.
type XLSXSource struct {
	Path    string
	Sheet   string
	Options Options
}

func (s *XLSXSource) Key() string { return "xlsx:" + s.Path + "#" + s.Sheet }

func (s *XLSXSource) Fingerprint() (string, error) { return fileFingerprint(s.Path) }

func (s *XLSXSource) Load(ctx context.Context) (*Table, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", s.Path, err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(s.Sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q in %s", ErrUnknownSheet, s.Sheet, s.Path)
	}
	rows, err := f.GetRows(s.Sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", s.Sheet, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q: %w", s.Sheet, ErrNoHeader)
	}
	return buildTable(rows[0], rows[1:], s.Options, parseCellTimestamp)
}

// CSVSource reads a comma separated export with a header row.
type CSVSource struct {
	Path    string
	Options Options
}

func (s *CSVSource) Key() string { return "csv:" + s.Path }

func (s *CSVSource) Fingerprint() (string, error) { return fileFingerprint(s.Path) }

func (s *CSVSource) Load(ctx context.Context) (*Table, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", s.Path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv %s: %w", s.Path, ErrNoHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv %s: %w", s.Path, err)
		}
		rows = append(rows, row)
		if len(rows)%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	return NewTable(header, rows, s.Options)
}
