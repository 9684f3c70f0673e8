package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type catalogRow struct {
	Index           int    `json:"index"`
	ItemID          string `json:"item_id"`
	Name            string `json:"name"`
	SoundEvent      string `json:"sound_event"`
	DurationSeconds int    `json:"duration_seconds"`
	AudioFile       string `json:"audio_file"`
	Present         bool   `json:"present"`
}

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List configured records and whether their audio exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			tune, cat, err := ctx.loadCatalog(cmd)
			if err != nil {
				return err
			}
			rows := make([]catalogRow, 0, cat.Len())
			for _, r := range cat.Records() {
				rows = append(rows, catalogRow{
					Index:           r.Index,
					ItemID:          r.ItemID,
					Name:            r.Name,
					SoundEvent:      r.SoundEvent,
					DurationSeconds: r.DurationSeconds,
					AudioFile:       r.AudioFile,
					Present:         audioPresent(tune.AudioDir, r.AudioFile),
				})
			}
			if asJSON {
				return writeJSON(cmd, rows)
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No records configured")
				return nil
			}
			table := make([][]string, 0, len(rows))
			missing := 0
			for _, r := range rows {
				audio := "ok"
				if !r.Present {
					audio = "missing"
					missing++
				}
				table = append(table, []string{
					strconv.Itoa(r.Index), r.ItemID, r.Name, r.SoundEvent,
					formatSeconds(r.DurationSeconds), r.AudioFile, audio,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"#", "Item", "Name", "Sound Event", "Length", "File", "Audio"},
				table,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d records, %d missing audio (audio dir %s)\n", len(rows), missing, tune.AudioDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func formatSeconds(s int) string {
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
