package cycles

import (
	"reflect"
	"testing"
)

func TestFilterFullSelectionReturnsTable(t *testing.T) {
	tbl := scenarioTable(t)
	view := Filter(tbl, DefaultSelection(tbl))
	if !reflect.DeepEqual(view, tbl.Records) {
		t.Fatalf("full selection changed the table: %+v", view)
	}
}

func TestFilterIsPure(t *testing.T) {
	tbl := scenarioTable(t)
	sel := NewSelection([]string{"M1"}, day("2025-01-01"), day("2025-01-02"))
	before := len(tbl.Records)

	first := Filter(tbl, sel)
	second := Filter(tbl, sel)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("filter not repeatable: %+v vs %+v", first, second)
	}
	if len(tbl.Records) != before {
		t.Fatalf("filter mutated the table")
	}
}

func TestFilterEndDayInclusive(t *testing.T) {
	tbl, err := NewTable(
		[]string{"timestamp", "hb_jiduser"},
		[][]string{
			{"2025-01-01 00:00:00", "M1"},
			{"2025-01-02 23:59:59", "M1"},
			{"2025-01-03 00:00:00", "M1"},
		},
		Options{},
	)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	view := Filter(tbl, NewSelection([]string{"M1"}, day("2025-01-01"), day("2025-01-02")))
	if len(view) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(view))
	}
	if view[1].Values[0] != "2025-01-02 23:59:59" {
		t.Fatalf("unexpected last row %+v", view[1])
	}
}

func TestFilterNoMachines(t *testing.T) {
	tbl := scenarioTable(t)
	view := Filter(tbl, NewSelection(nil, day("2025-01-01"), day("2025-01-02")))
	if view == nil || len(view) != 0 {
		t.Fatalf("expected empty non-nil view, got %#v", view)
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	tbl, err := NewTable(
		[]string{"timestamp", "hb_jiduser"},
		[][]string{
			{"2025-01-03", "M1"},
			{"2025-01-01", "M2"},
			{"2025-01-02", "M1"},
		},
		Options{},
	)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	view := Filter(tbl, DefaultSelection(tbl))
	got := []string{view[0].Values[0], view[1].Values[0], view[2].Values[0]}
	want := []string{"2025-01-03 00:00:00", "2025-01-01 00:00:00", "2025-01-02 00:00:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFilterEndBeforeStart(t *testing.T) {
	tbl := scenarioTable(t)
	view := Filter(tbl, NewSelection(tbl.Machines(), day("2025-01-02"), day("2025-01-01")))
	if len(view) != 0 {
		t.Fatalf("expected empty view, got %d rows", len(view))
	}
}
