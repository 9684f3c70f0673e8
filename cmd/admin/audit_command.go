package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/HBIDamian/CustomJukebox/internal/persistence/indexdb"
	persistlog "github.com/HBIDamian/CustomJukebox/internal/persistence/log"
	"github.com/HBIDamian/CustomJukebox/internal/sim/world"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var (
		source string
		filter indexdb.AuditFilter
		action string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent jukebox transitions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if filter.Limit <= 0 {
				filter.Limit = 50
			}
			var rows []indexdb.AuditRow
			var err error
			switch source {
			case "index":
				rows, err = auditFromIndex(cmd, ctx, filter)
			case "log":
				if filter.World == "" {
					filter.World = "overworld"
				}
				rows, err = auditFromLogs(filepath.Join(ctx.dataDir, "worlds", filter.World), filter)
			default:
				return fmt.Errorf("unknown --source %q (want index or log)", source)
			}
			if err != nil {
				return err
			}
			if action != "" {
				kept := rows[:0]
				for _, r := range rows {
					if r.Action == action {
						kept = append(kept, r)
					}
				}
				rows = kept
			}

			if asJSON {
				return writeJSON(cmd, rows)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No audit entries")
				return nil
			}
			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				table = append(table, []string{
					strconv.FormatUint(r.Tick, 10), r.Actor, r.Action, r.World,
					fmt.Sprintf("%d,%d,%d", r.Pos[0], r.Pos[1], r.Pos[2]),
					r.SoundEvent, r.ItemID,
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"Tick", "Actor", "Action", "World", "Pos", "Sound Event", "Item"},
				table,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "index", "Where to read from: index or log")
	cmd.Flags().StringVar(&filter.Actor, "actor", "", "Only entries by this actor (SYSTEM for auto-ejects)")
	cmd.Flags().StringVar(&filter.World, "world", "", "Only entries in this world (log source defaults to overworld)")
	cmd.Flags().StringVar(&action, "action", "", "Only entries with this action (INSERT, EJECT, AUTO_EJECT, DESTROY)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "Maximum entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func auditFromIndex(cmd *cobra.Command, ctx *commandContext, f indexdb.AuditFilter) ([]indexdb.AuditRow, error) {
	path, err := ctx.requireIndex()
	if err != nil {
		return nil, err
	}
	db, err := indexdb.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return indexdb.ListAudits(cmd.Context(), db, f)
}

// auditFromLogs reads the compressed logs of one world. It is the fallback
// when the server runs without an index.
func auditFromLogs(worldDir string, f indexdb.AuditFilter) ([]indexdb.AuditRow, error) {
	files, err := persistlog.AuditFiles(worldDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no audit logs under %s", worldDir)
		}
		return nil, err
	}
	var rows []indexdb.AuditRow
	for _, path := range files {
		entries, err := persistlog.ReadAll[world.AuditEntry](path)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if f.Actor != "" && e.Actor != f.Actor {
				continue
			}
			rows = append(rows, indexdb.AuditRow{
				Tick:       e.Tick,
				Actor:      e.Actor,
				Action:     e.Action,
				World:      e.World,
				Pos:        e.Pos,
				SoundEvent: e.SoundEvent,
				ItemID:     e.ItemID,
			})
		}
	}
	// Newest first, then cut to the limit.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows, nil
}
