// Package commands holds the ccsessions command tree.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhaobenny/ccsessions/cli/internal/output"
	"github.com/zhaobenny/ccsessions/internal/bucket"
	"github.com/zhaobenny/ccsessions/internal/config"
	"github.com/zhaobenny/ccsessions/internal/engine"
	"github.com/zhaobenny/ccsessions/internal/filter"
	"github.com/zhaobenny/ccsessions/internal/resolver"
)

var Version = "dev"

// app carries flag values and the state built from them before each command.
type app struct {
	configPath string
	timezone   string
	project    string
	days       int
	jsonOut    bool
	compact    bool
	debug      bool
	cwd        bool

	cfg    *config.Config
	logger *zap.Logger
	engine *engine.Engine
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ccsessions",
		Short: "Claude Code session cost and usage analytics",
		Long: "ccsessions reads Claude Code session transcripts under ~/.claude/projects, " +
			"prices every turn and reports usage by period, session, project and hour.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default ~/.ccsessions.yaml)")
	pf.StringVar(&a.timezone, "timezone", "", "Timezone for date grouping (e.g., America/New_York)")
	pf.StringVarP(&a.project, "project", "p", "", "Only include this project id")
	pf.IntVarP(&a.days, "days", "d", 0, "Only include the last N days (0 = all time)")
	pf.BoolVar(&a.jsonOut, "json", false, "Output as JSON")
	pf.BoolVarP(&a.compact, "compact", "c", false, "Force compact table output")
	pf.BoolVar(&a.debug, "debug", false, "Enable debug logging")
	pf.BoolVar(&a.cwd, "cwd", false, "Only include the project of the current directory")

	root.AddCommand(
		newSummaryCmd(a),
		newPeriodCmd(a, "daily", "Show usage by day", "Date", bucket.Day),
		newPeriodCmd(a, "weekly", "Show usage by ISO week", "Week", bucket.Week),
		newPeriodCmd(a, "monthly", "Show usage by month", "Month", bucket.Month),
		newUsageCmd(a),
		newSessionsCmd(a),
		newSessionModelsCmd(a),
		newSessionCmd(a),
		newProjectsCmd(a),
		newTopProjectsCmd(a),
		newHourlyCmd(a),
		newTimelineCmd(a),
		newSchemaCmd(a),
		newExportCmd(a),
		newConfigCmd(a),
	)

	root.Version = Version
	root.SetVersionTemplate(fmt.Sprintf("ccsessions %s\n", Version))

	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{}
	if err := execute(ctx, a, newRootCmd(a)); err != nil {
		stop()
		os.Exit(1)
	}
}

// execute runs cmd and releases the engine and logger whether or not the
// command failed. cobra skips post-run hooks after an error.
func execute(ctx context.Context, a *app, cmd *cobra.Command) error {
	defer a.teardown()
	return cmd.ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	a.cfg.ApplyEnv()
	if a.timezone != "" {
		a.cfg.Timezone = a.timezone
	}
	if a.debug {
		a.cfg.Debug = true
	}

	a.logger, err = config.NewLogger(a.cfg.Debug)
	if err != nil {
		return err
	}
	a.logger.Debug("configuration loaded",
		zap.String("command", cmd.Name()),
		zap.String("projects_path", a.cfg.ProjectsPath),
		zap.String("timezone", a.cfg.Timezone),
	)
	return nil
}

func (a *app) teardown() {
	if a.engine != nil {
		a.engine.Close()
		a.engine = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// open builds the query engine on first use.
func (a *app) open() (*engine.Engine, error) {
	if a.engine != nil {
		return a.engine, nil
	}
	loc, err := a.cfg.Location()
	if err != nil {
		return nil, err
	}
	a.engine, err = engine.New(engine.Options{
		ProjectsPath: a.cfg.ProjectsPath,
		Workers:      a.cfg.Workers,
		Pricing:      a.cfg.PriceTable(),
		Location:     loc,
		TopProjects:  a.cfg.TopProjects,
		Logger:       a.logger,
	})
	return a.engine, err
}

// filter builds the query filter from flags.
func (a *app) filter() (filter.Filter, error) {
	project := a.project
	if a.cwd {
		if project != "" {
			return filter.Filter{}, errors.New("--cwd and --project are mutually exclusive")
		}
		dir, err := os.Getwd()
		if err != nil {
			return filter.Filter{}, err
		}
		project = resolver.EncodePath(dir)
	}
	return a.cfg.Filter(a.days, project), nil
}

func (a *app) tableOptions() output.TableOptions {
	return output.TableOptions{ForceCompact: a.compact}
}

// render prints v as JSON when --json is set, otherwise calls table.
func (a *app) render(w io.Writer, v any, table func()) error {
	if a.jsonOut {
		return output.PrintJSON(w, v)
	}
	table()
	return nil
}
