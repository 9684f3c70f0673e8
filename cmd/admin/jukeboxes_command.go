package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type jukeboxesResponse struct {
	WorldID   string `json:"world_id"`
	Tick      uint64 `json:"tick"`
	Jukeboxes []struct {
		World      string `json:"world"`
		Pos        [3]int `json:"pos"`
		Name       string `json:"name"`
		ItemID     string `json:"item_id"`
		SoundEvent string `json:"sound_event"`
		Duration   int    `json:"duration_seconds"`
	} `json:"jukeboxes"`
}

func newJukeboxesCommand() *cobra.Command {
	var baseURL string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "jukeboxes",
		Short: "List jukeboxes currently playing on a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/admin/v1/jukeboxes"
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
			if err != nil {
				return err
			}
			cl := &http.Client{Timeout: 5 * time.Second}
			resp, err := cl.Do(req)
			if err != nil {
				return fmt.Errorf("request: %w", err)
			}
			defer resp.Body.Close()
			b, _ := io.ReadAll(resp.Body)
			if resp.StatusCode/100 != 2 {
				return fmt.Errorf("%s: %s: %s", u, resp.Status, strings.TrimSpace(string(b)))
			}
			out := cmd.OutOrStdout()
			if asJSON {
				_, err := out.Write(b)
				return err
			}

			var jr jukeboxesResponse
			if err := json.Unmarshal(b, &jr); err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			if len(jr.Jukeboxes) == 0 {
				fmt.Fprintf(out, "No jukeboxes playing in %s (tick %d)\n", jr.WorldID, jr.Tick)
				return nil
			}
			rows := make([][]string, 0, len(jr.Jukeboxes))
			for _, j := range jr.Jukeboxes {
				rows = append(rows, []string{
					j.World,
					fmt.Sprintf("%d,%d,%d", j.Pos[0], j.Pos[1], j.Pos[2]),
					j.Name, j.ItemID, j.SoundEvent, formatSeconds(j.Duration),
				})
			}
			fmt.Fprintln(out, renderTable(out,
				[]string{"World", "Pos", "Name", "Item", "Sound Event", "Length"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			fmt.Fprintf(out, "%d playing at tick %d\n", len(jr.Jukeboxes), jr.Tick)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "Server base url")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON response")
	return cmd
}
