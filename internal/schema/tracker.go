// Package schema tracks which JSON field paths appear in transcripts, per
// day, so format changes across tool versions become visible.
package schema

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"

	"github.com/zhaobenny/ccsessions/internal/bucket"
	"github.com/zhaobenny/ccsessions/internal/model"
	"github.com/zhaobenny/ccsessions/internal/parser"
)

// ArrayMarker is appended to a path segment whose value is an array.
const ArrayMarker = "[]"

type cellKey struct {
	path string
	day  string
}

type cell struct {
	counts       map[string]int
	versions     []string // first-seen order
	hasTimestamp bool
	events       int
}

// Tracker accumulates field observations. It is not safe for concurrent use.
type Tracker struct {
	cells map[cellKey]*cell
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{cells: make(map[cellKey]*cell)}
}

// Observe records every field path of one record. The record's own
// timestamp picks the day; without one the file's modification time is
// used and the observation is marked as a fallback. Records with neither
// are ignored.
func (t *Tracker) Observe(rec parser.RawRecord, fileMTime time.Time) {
	var (
		day     string
		genuine bool
	)
	if rec.Timestamp != nil {
		if ts := parser.ParseTimestamp(*rec.Timestamp); ts != nil {
			day = ts.UTC().Format(bucket.DayLayout)
			genuine = true
		}
	}
	if day == "" {
		if fileMTime.IsZero() {
			return
		}
		day = fileMTime.UTC().Format(bucket.DayLayout)
	}

	var version string
	if rec.Version != nil {
		version = *rec.Version
	}

	for _, path := range Paths(rec.Line) {
		key := cellKey{path: path, day: day}
		c, ok := t.cells[key]
		if !ok {
			c = &cell{counts: make(map[string]int)}
			t.cells[key] = c
		}
		c.events++
		c.hasTimestamp = c.hasTimestamp || genuine
		if version != "" {
			if c.counts[version] == 0 {
				c.versions = append(c.versions, version)
			}
			c.counts[version]++
		}
	}
}

// Observations returns one row per (path, day), ordered by the path's first
// seen day, then path, then day.
func (t *Tracker) Observations() []model.SchemaFieldObservation {
	firstSeen := make(map[string]string)
	for key := range t.cells {
		if d, ok := firstSeen[key.path]; !ok || key.day < d {
			firstSeen[key.path] = key.day
		}
	}

	out := make([]model.SchemaFieldObservation, 0, len(t.cells))
	for key, c := range t.cells {
		out = append(out, model.SchemaFieldObservation{
			JSONPath:           key.path,
			EventDate:          key.day,
			Version:            c.mode(),
			HasRecordTimestamp: c.hasTimestamp,
			EventCount:         c.events,
			FirstSeen:          firstSeen[key.path],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FirstSeen != b.FirstSeen {
			return a.FirstSeen < b.FirstSeen
		}
		if a.JSONPath != b.JSONPath {
			return a.JSONPath < b.JSONPath
		}
		return a.EventDate < b.EventDate
	})
	return out
}

// mode returns the most frequent version; ties go to the one seen first.
func (c *cell) mode() string {
	best, bestCount := "", 0
	for _, v := range c.versions {
		if n := c.counts[v]; n > bestCount {
			best, bestCount = v, n
		}
	}
	return best
}

// Since drops observations dated before day (YYYY-MM-DD). First-seen values
// are kept from the full set.
func Since(obs []model.SchemaFieldObservation, day string) []model.SchemaFieldObservation {
	if day == "" {
		return obs
	}
	out := make([]model.SchemaFieldObservation, 0, len(obs))
	for _, o := range obs {
		if o.EventDate >= day {
			out = append(out, o)
		}
	}
	return out
}

// Paths lists the distinct field paths of a JSON object: dotted keys, with
// ArrayMarker for array elements. Keys are visited depth-first in sorted order.
func Paths(line json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	var paths []string
	var walk func(prefix string, v any)
	walk = func(prefix string, v any) {
		switch val := v.(type) {
		case map[string]any:
			keys := make([]string, 0, len(val))
			for k := range val {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				p := k
				if prefix != "" {
					p = prefix + "." + k
				}
				if !seen[p] {
					seen[p] = true
					paths = append(paths, p)
				}
				walk(p, val[k])
			}
		case []any:
			for _, elem := range val {
				walk(prefix+ArrayMarker, elem)
			}
		}
	}
	walk("", root)
	return paths
}
