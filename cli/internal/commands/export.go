package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhaobenny/ccsessions/cli/internal/export"
	"github.com/zhaobenny/ccsessions/cli/internal/output"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.db>",
		Short: "Write events, sessions and projects to a SQLite file",
		Long: "Export writes every matching event with its cost, the session listing and " +
			"the project listing into a SQLite database. Re-exporting into the same file " +
			"skips events that are already present and refreshes the listings.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.query()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			snap, err := a.engine.Snapshot(ctx, f)
			if err != nil {
				return err
			}
			events, sessions, projects := snap.Events, snap.Sessions, snap.Projects

			db, err := export.Open(args[0])
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate %s: %w", args[0], err)
			}
			inserted, err := db.InsertEvents(ctx, events, a.engine.Pricing())
			if err != nil {
				return err
			}
			if err := db.ReplaceSessions(ctx, sessions); err != nil {
				return err
			}
			if err := db.ReplaceProjects(ctx, projects); err != nil {
				return err
			}

			a.logger.Debug("export complete",
				zap.String("path", args[0]),
				zap.Int("events", len(events)),
				zap.Int64("inserted", inserted),
			)

			w := cmd.OutOrStdout()
			if a.jsonOut {
				days, err := db.DailyCost(ctx)
				if err != nil {
					return err
				}
				return output.PrintJSON(w, map[string]any{
					"path":     args[0],
					"events":   len(events),
					"inserted": inserted,
					"sessions": len(sessions),
					"projects": len(projects),
					"days":     days,
				})
			}
			fmt.Fprintf(w, "Exported %d events (%d new), %d sessions and %d projects to %s\n",
				len(events), inserted, len(sessions), len(projects), args[0])
			return nil
		},
	}
}
