package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/zhaobenny/ccsessions/internal/bucket"
	"github.com/zhaobenny/ccsessions/internal/engine"
	"github.com/zhaobenny/ccsessions/internal/model"
	"github.com/zhaobenny/ccsessions/internal/resolver"
)

const (
	compactThreshold = 100 // Terminal width below which compact mode kicks in
	defaultWidth     = 120
)

// TableOptions controls table display behavior
type TableOptions struct {
	ForceCompact bool
	// Width overrides terminal detection when positive.
	Width int
}

// terminalWidth returns the current terminal width
func terminalWidth() int {
	// Check COLUMNS env var first
	if cols, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && cols > 0 {
		return cols
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return defaultWidth
}

// shouldUseCompact determines if compact mode should be used
func shouldUseCompact(opts TableOptions) bool {
	if opts.ForceCompact {
		return true
	}
	width := opts.Width
	if width <= 0 {
		width = terminalWidth()
	}
	return width < compactThreshold
}

// FormatNumber formats a number with thousand separators
func FormatNumber(n int64) string {
	str := strconv.FormatInt(n, 10)
	negative := n < 0
	if negative {
		str = str[1:]
	}

	var b strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}

// FormatCost formats a cost value as currency
func FormatCost(cost float64) string {
	return fmt.Sprintf("$%.2f", cost)
}

var (
	// claude-sonnet-4-5-20250929 -> sonnet-4-5
	datedModel = regexp.MustCompile(`^claude-(\w+)-([\d-]+)-(\d{8})$`)
	// claude-opus-4-5 -> opus-4-5
	plainModel = regexp.MustCompile(`^claude-(\w+)-([\d-]+)$`)
)

// shortenModelName converts full model names to short form
func shortenModelName(name string) string {
	if m := datedModel.FindStringSubmatch(name); m != nil {
		return m[1] + "-" + m[2]
	}
	if m := plainModel.FindStringSubmatch(name); m != nil {
		return m[1] + "-" + m[2]
	}
	return name
}

// shortenID truncates a UUID to its first 8 chars
func shortenID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return "-"
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

// rowLabel joins the grouping dimensions a view filled in.
func rowLabel(r model.AggregateRow, compact bool) string {
	var parts []string
	if r.Bucket != "" {
		parts = append(parts, r.Bucket)
	}
	if r.Hour != nil {
		parts = append(parts, fmt.Sprintf("%02d:00", *r.Hour))
	}
	if r.ProjectID != "" {
		p := r.ProjectID
		if compact {
			p = truncate(p, 24)
		}
		parts = append(parts, p)
	}
	if r.SessionID != "" {
		parts = append(parts, shortenID(r.SessionID))
	}
	if r.Model != "" {
		parts = append(parts, shortenModelName(r.Model))
	}
	return strings.Join(parts, "  ")
}

// PrintUsage prints aggregate rows as a formatted table
func PrintUsage(w io.Writer, rows []model.AggregateRow, title string, opts TableOptions) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No usage data found.")
		return
	}

	compact := shouldUseCompact(opts)

	keyWidth := len(title)
	for _, r := range rows {
		if n := len([]rune(rowLabel(r, compact))); n > keyWidth {
			keyWidth = n
		}
	}
	if keyWidth < 10 {
		keyWidth = 10
	}

	var total model.TokenUsage
	var totalCost float64
	for _, r := range rows {
		total.Add(r.Usage)
		totalCost += r.TotalCost
	}

	fmt.Fprintln(w)

	if compact {
		// Compact: Key, Input, Output, Cost
		rule := strings.Repeat("─", keyWidth+2+12+2+12+2+10)
		fmt.Fprintf(w, "%-*s  %12s  %12s  %10s\n", keyWidth, title, "Input", "Output", "Cost")
		fmt.Fprintln(w, rule)
		for _, r := range rows {
			fmt.Fprintf(w, "%-*s  %12s  %12s  %10s\n",
				keyWidth, rowLabel(r, compact),
				FormatNumber(r.Usage.InputTokens),
				FormatNumber(r.Usage.OutputTokens),
				FormatCost(r.TotalCost))
		}
		if len(rows) > 1 {
			fmt.Fprintln(w, rule)
			fmt.Fprintf(w, "%-*s  %12s  %12s  %10s\n",
				keyWidth, "Total",
				FormatNumber(total.InputTokens),
				FormatNumber(total.OutputTokens),
				FormatCost(totalCost))
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "(Compact mode - expand terminal for full view)")
		return
	}

	// Full: Key, Input, Output, Cache Create, Cache Read, Cost
	rule := strings.Repeat("─", keyWidth+2+12+2+12+2+14+2+14+2+10)
	fmt.Fprintf(w, "%-*s  %12s  %12s  %14s  %14s  %10s\n",
		keyWidth, title, "Input", "Output", "Cache Create", "Cache Read", "Cost")
	fmt.Fprintln(w, rule)
	for _, r := range rows {
		fmt.Fprintf(w, "%-*s  %12s  %12s  %14s  %14s  %10s\n",
			keyWidth, rowLabel(r, compact),
			FormatNumber(r.Usage.InputTokens),
			FormatNumber(r.Usage.OutputTokens),
			FormatNumber(r.Usage.CacheCreationInputTokens),
			FormatNumber(r.Usage.CacheReadInputTokens),
			FormatCost(r.TotalCost))
	}
	if len(rows) > 1 {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "%-*s  %12s  %12s  %14s  %14s  %10s\n",
			keyWidth, "Total",
			FormatNumber(total.InputTokens),
			FormatNumber(total.OutputTokens),
			FormatNumber(total.CacheCreationInputTokens),
			FormatNumber(total.CacheReadInputTokens),
			FormatCost(totalCost))
	}
	fmt.Fprintln(w)
}

// PrintSummary prints the overall rollup
func PrintSummary(w io.Writer, s model.Summary, loc *time.Location) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-22s %s\n", "Projects", FormatNumber(int64(s.ProjectCount)))
	fmt.Fprintf(w, "%-22s %s\n", "Sessions", FormatNumber(int64(s.SessionCount)))
	fmt.Fprintf(w, "%-22s %s\n", "Events", FormatNumber(int64(s.EventCount)))
	fmt.Fprintf(w, "%-22s %s\n", "Subagent files", FormatNumber(int64(s.SubagentFileCount)))
	fmt.Fprintf(w, "%-22s %s .. %s\n", "Range", formatTime(s.FirstTimestamp, loc), formatTime(s.LastTimestamp, loc))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-22s %14s\n", "Input", FormatNumber(s.Usage.InputTokens))
	fmt.Fprintf(w, "%-22s %14s\n", "Output", FormatNumber(s.Usage.OutputTokens))
	fmt.Fprintf(w, "%-22s %14s\n", "Cache create (5m)", FormatNumber(s.Usage.Ephemeral5mInputTokens))
	fmt.Fprintf(w, "%-22s %14s\n", "Cache create (1h)", FormatNumber(s.Usage.Ephemeral1hInputTokens))
	fmt.Fprintf(w, "%-22s %14s\n", "Cache read", FormatNumber(s.Usage.CacheReadInputTokens))
	fmt.Fprintf(w, "%-22s %14s\n", "Sidechain output", FormatNumber(s.SidechainUsage.OutputTokens))
	fmt.Fprintln(w, strings.Repeat("─", 37))
	fmt.Fprintf(w, "%-22s %14s\n", "Base input", FormatCost(s.Cost.BaseInput))
	fmt.Fprintf(w, "%-22s %14s\n", "Cache 5m writes", FormatCost(s.Cost.Cache5m))
	fmt.Fprintf(w, "%-22s %14s\n", "Cache 1h writes", FormatCost(s.Cost.Cache1h))
	fmt.Fprintf(w, "%-22s %14s\n", "Cache reads", FormatCost(s.Cost.CacheRead))
	fmt.Fprintf(w, "%-22s %14s\n", "Output", FormatCost(s.Cost.Output))
	fmt.Fprintf(w, "%-22s %14s\n", "Total", FormatCost(s.TotalCost))
	fmt.Fprintln(w)
}

// PrintSessions prints the session listing
func PrintSessions(w io.Writer, rows []model.SessionSummary, loc *time.Location, opts TableOptions) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return
	}
	compact := shouldUseCompact(opts)

	fmt.Fprintln(w)
	if compact {
		fmt.Fprintf(w, "%-8s  %-16s  %8s  %10s\n", "Session", "Last", "Events", "Cost")
		fmt.Fprintln(w, strings.Repeat("─", 8+2+16+2+8+2+10))
		for _, r := range rows {
			fmt.Fprintf(w, "%-8s  %-16s  %8s  %10s\n",
				shortenID(r.SessionID), formatTime(r.LastTimestamp, loc),
				FormatNumber(int64(r.EventCount)), FormatCost(r.TotalCost))
		}
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "%-30s  %-8s  %-16s  %8s  %9s  %12s  %10s  %s\n",
		"Project", "Session", "Last", "Events", "Subagents", "Output", "Cost", "Models")
	fmt.Fprintln(w, strings.Repeat("─", 30+2+8+2+16+2+8+2+9+2+12+2+10+2+6))
	for _, r := range rows {
		models := make([]string, 0, len(r.Models))
		for _, m := range r.Models {
			models = append(models, shortenModelName(m))
		}
		fmt.Fprintf(w, "%-30s  %-8s  %-16s  %8s  %9s  %12s  %10s  %s\n",
			truncate(r.ProjectID, 30), shortenID(r.SessionID), formatTime(r.LastTimestamp, loc),
			FormatNumber(int64(r.EventCount)), FormatNumber(int64(r.SubagentCount)),
			FormatNumber(r.Usage.OutputTokens), FormatCost(r.TotalCost), strings.Join(models, ", "))
	}
	fmt.Fprintln(w)
}

// PrintProjects prints the project listing
func PrintProjects(w io.Writer, rows []model.ProjectRow, opts TableOptions) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return
	}
	nameWidth := 24
	if shouldUseCompact(opts) {
		nameWidth = 16
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-*s  %9s  %9s  %16s  %10s  %s\n", nameWidth, "Project", "Sessions", "Events", "Tokens", "Cost", "Path")
	fmt.Fprintln(w, strings.Repeat("─", nameWidth+2+9+2+9+2+16+2+10+2+4))
	for _, r := range rows {
		name := r.ProjectName
		if name == "" {
			name = r.ProjectID
		}
		fmt.Fprintf(w, "%-*s  %9s  %9s  %16s  %10s  %s\n",
			nameWidth, truncate(name, nameWidth),
			FormatNumber(int64(r.SessionCount)), FormatNumber(int64(r.EventCount)),
			FormatNumber(r.TotalTokens), FormatCost(r.TotalCost), r.ProjectPath)
	}
	fmt.Fprintln(w)
}

// PrintProjectDirs prints how each project directory was resolved
func PrintProjectDirs(w io.Writer, infos []resolver.ProjectInfo) {
	if len(infos) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-24s  %-14s  %s\n", "Project", "Source", "Path")
	fmt.Fprintln(w, strings.Repeat("─", 24+2+14+2+4))
	for _, p := range infos {
		path := p.ProjectPath
		if !p.Resolved() {
			path = p.ProjectID
		}
		fmt.Fprintf(w, "%-24s  %-14s  %s\n", truncate(p.ProjectName, 24), p.Source, path)
	}
	fmt.Fprintln(w)
}

var weekdays = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// PrintHourly prints the weekday x hour event matrix
func PrintHourly(w io.Writer, m model.HourlyMatrix) {
	fmt.Fprintln(w)
	fmt.Fprint(w, "     ")
	for h := 0; h < 24; h++ {
		fmt.Fprintf(w, "%4d", h)
	}
	fmt.Fprintln(w)
	for d := 0; d < 7; d++ {
		fmt.Fprintf(w, "%-5s", weekdays[d])
		for h := 0; h < 24; h++ {
			if n := m.Events[d][h]; n > 0 {
				fmt.Fprintf(w, "%4d", n)
			} else {
				fmt.Fprint(w, "   .")
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

// PrintTimeline prints one project's per-session event timeline
func PrintTimeline(w io.Writer, events []model.TimelineEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}
	fmt.Fprintln(w)
	var session string
	for _, ev := range events {
		if ev.SessionID != session {
			session = ev.SessionID
			fmt.Fprintf(w, "Session %s\n", session)
		}
		marker := " "
		if ev.IsSubagent {
			marker = "↳"
		}
		fmt.Fprintf(w, "  %4d %s %-19s  %-10s  %12s  %s\n",
			ev.EventSeq, marker, ev.TimestampLocal, truncate(ev.EventType, 10),
			FormatNumber(ev.CumulativeOutputTokens), truncate(ev.MessageContent, 60))
	}
	fmt.Fprintln(w)
}

// PrintSchema prints schema field observations
func PrintSchema(w io.Writer, obs []model.SchemaFieldObservation) {
	if len(obs) == 0 {
		fmt.Fprintln(w, "No records found.")
		return
	}
	pathWidth := 10
	for _, o := range obs {
		if len(o.JSONPath) > pathWidth {
			pathWidth = len(o.JSONPath)
		}
	}
	if pathWidth > 60 {
		pathWidth = 60
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-*s  %-10s  %-10s  %-10s  %8s\n", pathWidth, "Path", "First seen", "Date", "Version", "Events")
	fmt.Fprintln(w, strings.Repeat("─", pathWidth+2+10+2+10+2+10+2+8))
	for _, o := range obs {
		date := o.EventDate
		if !o.HasRecordTimestamp {
			date += "*"
		}
		fmt.Fprintf(w, "%-*s  %-10s  %-10s  %-10s  %8s\n",
			pathWidth, truncate(o.JSONPath, pathWidth), o.FirstSeen, date, o.Version,
			FormatNumber(int64(o.EventCount)))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "* date taken from file modification time")
}

// PrintSessionEvents prints a session's events in tree order, indented by depth
func PrintSessionEvents(w io.Writer, events []engine.SessionEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}
	fmt.Fprintln(w)
	for _, ev := range events {
		depth := 0
		// Parent chains may cycle.
		for p := ev.Parent; p != nil && depth < 12; p = p.Parent {
			depth++
		}
		local := ev.TimestampLocal
		if local == "" {
			local = "-"
		}
		flag := ""
		if ev.Status == bucket.TimezoneMismatch {
			flag = " (utc " + ev.DateUTC + ")"
		}
		fmt.Fprintf(w, "%-19s  %s%s %s  %s%s\n",
			local, strings.Repeat("  ", depth), shortenID(ev.UUID), ev.Type,
			shortenModelName(ev.Model), flag)
	}
	fmt.Fprintln(w)
}

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
