package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/HBIDamian/CustomJukebox/internal/pack"
	"github.com/HBIDamian/CustomJukebox/internal/persistence/indexdb"
)

func newBuildCommand(ctx *commandContext) *cobra.Command {
	var noIndex bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the resource pack once",
		RunE: func(cmd *cobra.Command, args []string) error {
			tune, cat, err := ctx.loadCatalog(cmd)
			if err != nil {
				return err
			}

			cfg := pack.ConfigFromTuning(tune)
			cfg.Logger = stderrLogger(cmd.ErrOrStderr(), "[pack] ")
			res, buildErr := pack.NewBuilder(cfg).Build(cmd.Context(), cat, tune.AudioDir, tune.StagingDir)

			id := uuid.NewString()
			if !noIndex {
				idx, err := indexdb.OpenSQLite(ctx.indexPath())
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warn: open index: %v\n", err)
				} else {
					if err := idx.UpsertCatalog(cat, tune); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warn: upsert catalog: %v\n", err)
					}
					idx.RecordBuild(indexdb.BuildFromResult(id, res, buildErr))
					_ = idx.Close()
				}
			}
			if buildErr != nil {
				return buildErr
			}

			out := cmd.OutOrStdout()
			entries := indexdb.BuildFromResult(id, res, nil).Records
			sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
			fmt.Fprintln(out, renderBuildRecords(out, entries))
			fmt.Fprintf(out, "Build %s: %d included, %d skipped in %s\n", id, len(res.Included), len(res.Skipped), res.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "Artifact %s (%d bytes, sha256 %s)\n", res.ArtifactPath, res.Size, res.SHA256)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "Do not record the build in the index")
	return cmd
}

func renderBuildRecords(out io.Writer, entries []indexdb.BuildRecordEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := "included"
		if !e.Included {
			status = "skipped: " + e.Reason
		}
		rows = append(rows, []string{strconv.Itoa(e.Index), e.ItemID, e.Name, e.SoundEvent, e.AudioFile, status})
	}
	return renderTable(out,
		[]string{"#", "Item", "Name", "Sound Event", "File", "Status"},
		rows,
		[]columnAlignment{alignRight},
	)
}
