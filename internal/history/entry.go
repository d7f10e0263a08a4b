// Package history models the run history kept by the report service and the
// client-side filtering applied before it is displayed.
package history

import (
	"sort"
	"strings"
	"time"

	"github.com/Backland-Labs/reportrun/internal/report"
)

// Status values recorded by the service.
const (
	StatusPassed = "passed"
	StatusError  = "error"
)

// Entry is a single past run as returned by GET /history.
type Entry struct {
	ID       string      `json:"id"       yaml:"id"`
	Type     report.Kind `json:"type"     yaml:"type"`
	Date     string      `json:"date"     yaml:"date"`
	Response string      `json:"response" yaml:"response"`
	Status   string      `json:"status"   yaml:"status"`
}

// Time parses Date. The service writes ISO-8601 timestamps, with or without a
// zone offset.
func (e Entry) Time() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", report.DateLayout} {
		if t, err := time.Parse(layout, e.Date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Passed reports whether the run succeeded.
func (e Entry) Passed() bool {
	return strings.EqualFold(e.Status, StatusPassed)
}

// Summary returns the first non-blank line of the response, cut to max runes.
func (e Entry) Summary(max int) string {
	line := ""
	for _, l := range strings.Split(e.Response, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	if r := []rune(line); max > 0 && len(r) > max {
		return string(r[:max-1]) + "…"
	}
	return line
}

// Filter selects entries for display.
type Filter struct {
	Kind   report.Kind
	Status string
	Limit  int
}

// Apply returns the matching entries newest first. The input is not modified.
func (f Filter) Apply(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if f.Kind != "" && e.Type != f.Kind {
			continue
		}
		if f.Status != "" && !strings.EqualFold(e.Status, f.Status) {
			continue
		}
		out = append(out, e)
	}
	SortNewestFirst(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// SortNewestFirst orders entries by date, newest first. Entries with an
// unparseable date keep their relative order after the dated ones.
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ti, okI := entries[i].Time()
		tj, okJ := entries[j].Time()
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI != okJ:
			return okI
		default:
			return false
		}
	})
}

// Find returns the entry with the given ID.
func Find(entries []Entry, id string) (Entry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}
