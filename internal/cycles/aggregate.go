package cycles

import (
	"sort"
	"time"
)

// DayCount is the number of records on one calendar day.
type DayCount struct {
	Day   time.Time `json:"-"`
	Date  string    `json:"date"`
	Count int       `json:"records"`
}

// MachineCount is the number of records of one machine.
type MachineCount struct {
	Machine string `json:"machine"`
	Count   int    `json:"record_count"`
}

// KPIs are the scalar cards shown above the charts.
type KPIs struct {
	TotalRecords   int `json:"total_records"`
	UniqueMachines int `json:"unique_machines"`
	DateSpanDays   int `json:"date_span_days"`
}

// Summary bundles the three aggregates of one view.
type Summary struct {
	KPIs     KPIs           `json:"kpis"`
	Daily    []DayCount     `json:"daily_counts"`
	Machines []MachineCount `json:"machine_counts"`
	Empty    bool           `json:"empty"`
}

// Summarize computes every aggregate of a filtered view.
func Summarize(view []Record) Summary {
	return Summary{
		KPIs:     ComputeKPIs(view),
		Daily:    DailyCounts(view),
		Machines: MachineCounts(view),
		Empty:    len(view) == 0,
	}
}

// DailyCounts counts records per calendar day, ascending. Days without
// records are absent.
func DailyCounts(view []Record) []DayCount {
	counts := make(map[time.Time]int)
	for i := range view {
		counts[Day(view[i].Timestamp)]++
	}
	result := make([]DayCount, 0, len(counts))
	for day, n := range counts {
		result = append(result, DayCount{Day: day, Date: day.Format(DateLayout), Count: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day.Before(result[j].Day) })
	return result
}

// MachineCounts counts records per machine, highest first. Equal counts are
// ordered by machine id.
func MachineCounts(view []Record) []MachineCount {
	counts := make(map[string]int)
	for i := range view {
		counts[view[i].Machine]++
	}
	result := make([]MachineCount, 0, len(counts))
	for m, n := range counts {
		result = append(result, MachineCount{Machine: m, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Machine < result[j].Machine
	})
	return result
}

// ComputeKPIs returns the record count, the distinct machine count and the
// span between first and last record in whole days.
func ComputeKPIs(view []Record) KPIs {
	k := KPIs{
		TotalRecords:   len(view),
		UniqueMachines: len(distinctMachines(view)),
	}
	if first, last, ok := timeBounds(view); ok {
		k.DateSpanDays = spanDays(first, last)
	}
	return k
}

// spanDays returns last-first in whole days, truncated. It works on
// calendar days so spans beyond the range of time.Duration stay exact.
func spanDays(first, last time.Time) int {
	days := (Day(last).Unix() - Day(first).Unix()) / 86400
	if last.Sub(Day(last)) < first.Sub(Day(first)) {
		days--
	}
	return int(days)
}
