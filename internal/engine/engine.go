// Package engine answers analytics queries. Every query scans the projects
// directory once, applies the filter, and then runs a single view.
package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/zhaobenny/ccsessions/internal/aggregator"
	"github.com/zhaobenny/ccsessions/internal/bucket"
	"github.com/zhaobenny/ccsessions/internal/filter"
	"github.com/zhaobenny/ccsessions/internal/model"
	"github.com/zhaobenny/ccsessions/internal/parser"
	"github.com/zhaobenny/ccsessions/internal/pricing"
	"github.com/zhaobenny/ccsessions/internal/resolver"
	"github.com/zhaobenny/ccsessions/internal/schema"
	"github.com/zhaobenny/ccsessions/internal/session"
)

// ErrProjectRequired is returned by views that need a single project.
var ErrProjectRequired = errors.New("project is required")

// Options configures an Engine.
type Options struct {
	ProjectsPath string
	Workers      int
	Pricing      *pricing.Table
	// Location is the target timezone for bucketing. Nil means UTC.
	Location    *time.Location
	TopProjects int
	Logger      *zap.Logger
	// Now is the clock used for time filters. Nil means time.Now.
	Now func() time.Time
}

// Engine is safe for concurrent queries. It holds no aggregate state
// between calls.
type Engine struct {
	scanner  *parser.Scanner
	agg      aggregator.Options
	resolver *resolver.Resolver
	topN     int
	logger   *zap.Logger
	now      func() time.Time
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	table := opts.Pricing
	if table == nil {
		table = pricing.DefaultTable()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	res, err := resolver.New(opts.ProjectsPath, logger.Named("resolver"))
	if err != nil {
		return nil, err
	}

	return &Engine{
		scanner: parser.NewScanner(opts.ProjectsPath, opts.Workers, logger.Named("scanner")),
		agg: aggregator.Options{
			Pricing:  table,
			Bucketer: bucket.New(opts.Location),
		},
		resolver: res,
		topN:     opts.TopProjects,
		logger:   logger,
		now:      now,
	}, nil
}

// Close releases the project resolver cache.
func (e *Engine) Close() {
	e.resolver.Close()
}

// Bucketer returns the engine's target-timezone bucketer.
func (e *Engine) Bucketer() *bucket.Bucketer {
	return e.agg.Bucketer
}

// load scans and filters. Files of excluded projects are never read.
func (e *Engine) load(ctx context.Context, f filter.Filter) ([]model.Event, time.Time, error) {
	now := e.now()
	res, err := e.scanner.Scan(ctx, f.KeepFile)
	if err != nil {
		return nil, now, err
	}
	events := f.Apply(res.Events, now)
	e.logger.Debug("scan complete",
		zap.Int("files", res.Stats.Files),
		zap.Int("skipped_files", res.Stats.SkippedFiles),
		zap.Int("skipped_lines", res.Stats.SkippedLines),
		zap.Int("events", len(res.Events)),
		zap.Int("matched", len(events)),
	)
	return events, now, nil
}

// Pricing returns the price table used for every cost.
func (e *Engine) Pricing() *pricing.Table {
	return e.agg.Pricing
}

// Summary returns the overall rollup.
func (e *Engine) Summary(ctx context.Context, f filter.Filter) (model.Summary, error) {
	events, _, err := e.load(ctx, f)
	if err != nil {
		return model.Summary{}, err
	}
	return aggregator.Summarize(events, e.agg), nil
}

// Usage returns (project, model, bucket) rows at the given granularity.
func (e *Engine) Usage(ctx context.Context, f filter.Filter, g bucket.Granularity) ([]model.AggregateRow, error) {
	events, _, err := e.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return aggregator.ByPeriod(events, e.agg, g), nil
}

// Sessions lists sessions, most recent first.
func (e *Engine) Sessions(ctx context.Context, f filter.Filter) ([]model.SessionSummary, error) {
	events, _, err := e.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return aggregator.Sessions(events, e.agg), nil
}

// SessionModels returns (project, session, model) rows.
func (e *Engine) SessionModels(ctx context.Context, f filter.Filter) ([]model.AggregateRow, error) {
	events, _, err := e.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return aggregator.BySessionModel(events, e.agg), nil
}

// SessionEvent is one event of a session detail, with both calendar dates.
type SessionEvent struct {
	*session.Node
	bucket.DateInfo
	TimestampLocal string `json:"timestamp_local,omitempty"`
}

// SessionEvents returns the events of one session in tree order. A non-empty
// eventUUID narrows the result to that event and its descendants.
func (e *Engine) SessionEvents(ctx context.Context, project, sessionID, eventUUID string) ([]SessionEvent, error) {
	events, err := session.Load(ctx, e.scanner.Root(), project, sessionID, e.logger)
	if err != nil {
		return nil, err
	}

	tree := session.Build(events)
	nodes := tree.Nodes()
	if eventUUID != "" {
		nodes = tree.Descendants(eventUUID)
	}

	b := e.agg.Bucketer
	out := make([]SessionEvent, 0, len(nodes))
	for _, n := range nodes {
		se := SessionEvent{Node: n, DateInfo: b.Dates(n.Timestamp)}
		if n.Timestamp != nil {
			se.TimestampLocal = b.Local(*n.Timestamp)
		}
		out = append(out, se)
	}
	return out, nil
}

// Projects lists projects by cost with resolved names. The project filter
// does not apply to this listing.
func (e *Engine) Projects(ctx context.Context, f filter.Filter) ([]model.ProjectRow, error) {
	f.Project = ""
	events, _, err := e.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return e.projectRows(events), nil
}

func (e *Engine) projectRows(events []model.Event) []model.ProjectRow {
	rows := aggregator.Projects(events, e.agg)
	for i := range rows {
		info := e.resolver.Resolve(rows[i].ProjectID)
		rows[i].ProjectName = info.ProjectName
		rows[i].ProjectPath = info.ProjectPath
	}
	return rows
}

// Snapshot is one scan's events together with the session and project
// listings derived from them.
type Snapshot struct {
	Events   []model.Event
	Sessions []model.SessionSummary
	Projects []model.ProjectRow
}

// Snapshot scans once and derives both listings from the same events, so
// they agree with each other even while transcripts are being appended.
// Unlike Projects, the project filter applies.
func (e *Engine) Snapshot(ctx context.Context, f filter.Filter) (Snapshot, error) {
	events, _, err := e.load(ctx, f)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Events:   events,
		Sessions: aggregator.Sessions(events, e.agg),
		Projects: e.projectRows(events),
	}, nil
}

// ResolveProject maps a project id to its path and display name.
func (e *Engine) ResolveProject(projectID string) resolver.ProjectInfo {
	return e.resolver.Resolve(projectID)
}

// ProjectDirs resolves every project directory, including ones without usage.
func (e *Engine) ProjectDirs() ([]resolver.ProjectInfo, error) {
	return e.resolver.All()
}

// TopProjectsWeekly ranks projects over the filter's window and reports the
// top ones week by week. The project filter does not apply.
func (e *Engine) TopProjectsWeekly(ctx context.Context, f filter.Filter) ([]model.AggregateRow, error) {
	f.Project = ""
	events, now, err := e.load(ctx, f)
	if err != nil {
		return nil, err
	}
	var from, to time.Time
	if cutoff, ok := f.Cutoff(now); ok {
		from, to = cutoff, now
	}
	return aggregator.TopProjectsWeekly(events, e.agg, e.topN, from, to), nil
}

// Hourly returns per-hour rows and the weekday x hour matrix.
func (e *Engine) Hourly(ctx context.Context, f filter.Filter) (aggregator.HourlyResult, error) {
	events, _, err := e.load(ctx, f)
	if err != nil {
		return aggregator.HourlyResult{}, err
	}
	return aggregator.Hourly(events, e.agg), nil
}

// Timeline returns the per-session event timeline of one project.
func (e *Engine) Timeline(ctx context.Context, f filter.Filter) ([]model.TimelineEvent, error) {
	if f.Project == "" {
		return nil, ErrProjectRequired
	}
	events, _, err := e.load(ctx, f)
	if err != nil {
		return nil, err
	}
	return aggregator.Timeline(events, e.agg), nil
}

// SchemaTimeline reports which field paths appeared on which days. Records
// of every type are observed, including ones that never become events.
func (e *Engine) SchemaTimeline(ctx context.Context, f filter.Filter) ([]model.SchemaFieldObservation, error) {
	files, stats, err := e.scanner.ScanRecords(ctx, f.KeepFile)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("schema scan complete", zap.Int("files", stats.Files), zap.Int("skipped_files", stats.SkippedFiles))

	tracker := schema.NewTracker()
	for _, fr := range files {
		for _, rec := range fr.Records {
			tracker.Observe(rec, fr.Entry.ModTime)
		}
	}

	var since string
	if cutoff, ok := f.Cutoff(e.now()); ok {
		since = cutoff.UTC().Format(bucket.DayLayout)
	}
	return schema.Since(tracker.Observations(), since), nil
}
