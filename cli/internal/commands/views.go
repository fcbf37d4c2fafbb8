package commands

import (
	"github.com/spf13/cobra"

	"github.com/zhaobenny/ccsessions/cli/internal/output"
	"github.com/zhaobenny/ccsessions/internal/bucket"
	"github.com/zhaobenny/ccsessions/internal/filter"
)

// query opens the engine and builds the filter shared by the view commands.
func (a *app) query() (filter.Filter, error) {
	if _, err := a.open(); err != nil {
		return filter.Filter{}, err
	}
	return a.filter()
}

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show overall totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.query()
			if err != nil {
				return err
			}
			s, err := a.engine.Summary(cmd.Context(), f)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return a.render(w, s, func() {
				output.PrintSummary(w, s, a.engine.Bucketer().Location())
			})
		},
	}
}

func newPeriodCmd(a *app, use, short, title string, g bucket.Granularity) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.query()
			if err != nil {
				return err
			}
			rows, err := a.engine.Usage(cmd.Context(), f, g)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return a.render(w, rows, func() {
				output.PrintUsage(w, rows, title, a.tableOptions())
			})
		},
	}
}

func newUsageCmd(a *app) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show usage at any granularity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := bucket.ParseGranularity(by)
			if err != nil {
				return err
			}
			f, err := a.query()
			if err != nil {
				return err
			}
			rows, err := a.engine.Usage(cmd.Context(), f, g)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return a.render(w, rows, func() {
				output.PrintUsage(w, rows, "Bucket", a.tableOptions())
			})
		},
	}

	cmd.Flags().StringVar(&by, "by", "day", "Bucket width: hour, day, week or month")

	return cmd
}

func newSessionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.query()
			if err != nil {
				return err
			}
			rows, err := a.engine.Sessions(cmd.Context(), f)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return a.render(w, rows, func() {
				output.PrintSessions(w, rows, a.engine.Bucketer().Location(), a.tableOptions())
			})
		},
	}
}

func newSessionModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "session-models",
		Short: "Show usage by session and model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.query()
			if err != nil {
				return err
			}
			rows, err := a.engine.SessionModels(cmd.Context(), f)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return a.render(w, rows, func() {
				output.PrintUsage(w, rows, "Session", a.tableOptions())
			})
		},
	}
}

func newSessionCmd(a *app) *cobra.Command {
	var eventUUID string

	cmd := &cobra.Command{
		Use:   "session <project-id> <session-id>",
		Short: "Show the event tree of one session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			events, err := e.SessionEvents(cmd.Context(), args[0], args[1], eventUUID)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return a.render(w, events, func() {
				output.PrintSessionEvents(w, events)
			})
		},
	}

	cmd.Flags().StringVar(&eventUUID, "event", "", "Only show this event and its descendants")

	return cmd
}

func newProjectsCmd(a *app) *cobra.Command {
	var dirs bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects by cost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.query()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if dirs {
				infos, err := a.engine.ProjectDirs()
				if err != nil {
					return err
				}
				return a.render(w, infos, func() {
					output.PrintProjectDirs(w, infos)
				})
			}
			rows, err := a.engine.Projects(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.render(w, rows, func() {
				output.PrintProjects(w, rows, a.tableOptions())
			})
		},
	}

	cmd.Flags().BoolVar(&dirs, "dirs", false, "List every project directory with its resolved path")

	return cmd
}

func newTopProjectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "top-projects",
		Short: "Show weekly cost of the most expensive projects",
		Long: "Ranks projects by cost over the window and reports each of the top ones " +
			"for every week, including weeks without usage. Without --days the window " +
			"is top_projects_days from the config file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.query()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				f.Days = a.cfg.TopProjectsDays
			}
			rows, err := a.engine.TopProjectsWeekly(cmd.Context(), f)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return a.render(w, rows, func() {
				output.PrintUsage(w, rows, "Week", a.tableOptions())
			})
		},
	}
}

func newHourlyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hourly",
		Short: "Show activity by weekday and hour",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.query()
			if err != nil {
				return err
			}
			res, err := a.engine.Hourly(cmd.Context(), f)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return a.render(w, res, func() {
				output.PrintHourly(w, res.Matrix)
			})
		},
	}
}

func newTimelineCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "timeline [project-id]",
		Short: "Show the per-session event timeline of a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.query()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				f.Project = args[0]
			}
			events, err := a.engine.Timeline(cmd.Context(), f)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return a.render(w, events, func() {
				output.PrintTimeline(w, events)
			})
		},
	}
}

func newSchemaCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Show when record fields first appeared",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.query()
			if err != nil {
				return err
			}
			obs, err := a.engine.SchemaTimeline(cmd.Context(), f)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return a.render(w, obs, func() {
				output.PrintSchema(w, obs)
			})
		},
	}
}
