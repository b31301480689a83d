package cycles

import "time"

// DateLayout is the wire format of selection dates.
const DateLayout = "2006-01-02"

// Selection is the user's current filter. Start and End are calendar days;
// both are inclusive.
type Selection struct {
	Machines map[string]struct{}
	Start    time.Time
	End      time.Time
}

// NewSelection builds a Selection from a machine list and two days.
func NewSelection(machines []string, start, end time.Time) Selection {
	set := make(map[string]struct{}, len(machines))
	for _, m := range machines {
		set[m] = struct{}{}
	}
	return Selection{Machines: set, Start: Day(start), End: Day(end)}
}

// DefaultSelection selects every machine over the full observed range.
func DefaultSelection(t *Table) Selection {
	first, last, _ := t.Bounds()
	return NewSelection(t.Machines(), first, last)
}

// Day truncates a timestamp to its calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Filter returns the records of t matching sel, in table order. The end
// day is widened by one day so that the whole of it is included.
func Filter(t *Table, sel Selection) []Record {
	out := make([]Record, 0)
	if len(sel.Machines) == 0 {
		return out
	}
	from := sel.Start
	until := sel.End.AddDate(0, 0, 1)
	for i := range t.Records {
		r := &t.Records[i]
		if _, ok := sel.Machines[r.Machine]; !ok {
			continue
		}
		if r.Timestamp.Before(from) || !r.Timestamp.Before(until) {
			continue
		}
		out = append(out, *r)
	}
	return out
}
