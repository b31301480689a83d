package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/community-scripts/ftt-cycle-dashboard/internal/cycles"
)

func TestRenderDailyChartSingleDay(t *testing.T) {
	d := time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := renderDailyChart(&buf, []cycles.DayCount{{Day: d, Date: "2025-11-03", Count: 7}})
	if err != nil {
		t.Fatalf("renderDailyChart: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("output is not a PNG")
	}
}

func TestRenderMachineChartEqualCounts(t *testing.T) {
	var buf bytes.Buffer
	err := renderMachineChart(&buf, []cycles.MachineCount{{Machine: "M1", Count: 3}, {Machine: "M2", Count: 3}})
	if err != nil {
		t.Fatalf("renderMachineChart: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("empty output")
	}
}

func TestRenderChartsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := renderDailyChart(&buf, nil); !errors.Is(err, errNoChartData) {
		t.Fatalf("expected errNoChartData, got %v", err)
	}
	if err := renderMachineChart(&buf, nil); !errors.Is(err, errNoChartData) {
		t.Fatalf("expected errNoChartData, got %v", err)
	}
}
