package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/HBIDamian/CustomJukebox/internal/persistence/indexdb"
)

func newBuildsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "builds [build-id]",
		Short: "Show pack build history, or the records of one build",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ctx.requireIndex()
			if err != nil {
				return err
			}
			db, err := indexdb.OpenReader(path)
			if err != nil {
				return err
			}
			defer db.Close()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				entries, err := indexdb.BuildRecords(cmd.Context(), db, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					return fmt.Errorf("build %s not found or has no records", args[0])
				}
				fmt.Fprintln(out, renderBuildRecords(out, entries))
				return nil
			}

			builds, err := indexdb.ListBuilds(cmd.Context(), db, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, builds)
			}
			if len(builds) == 0 {
				fmt.Fprintln(out, "No builds recorded")
				return nil
			}
			rows := make([][]string, 0, len(builds))
			for _, b := range builds {
				result := "ok"
				if !b.OK {
					result = "failed"
					if b.Stage != "" {
						result += " (" + b.Stage + ")"
					}
				}
				rows = append(rows, []string{
					b.ID,
					b.StartedAt.Local().Format(time.DateTime),
					(time.Duration(b.DurationMS) * time.Millisecond).String(),
					result,
					strconv.Itoa(b.Included),
					strconv.Itoa(b.Skipped),
					shortHash(b.SHA256),
					b.Error,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"ID", "Started", "Took", "Result", "Included", "Skipped", "SHA256", "Error"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum builds to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func shortHash(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
