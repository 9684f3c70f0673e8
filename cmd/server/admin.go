package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/HBIDamian/CustomJukebox/internal/sim/world"
)

// jukeboxView is the admin JSON shape of one playing slot.
type jukeboxView struct {
	World      string     `json:"world"`
	Pos        [3]int     `json:"pos"`
	Name       string     `json:"name"`
	ItemID     string     `json:"item_id"`
	SoundEvent string     `json:"sound_event"`
	Duration   int        `json:"duration_seconds"`
	Generation uint64     `json:"generation"`
	SoundPos   [3]float64 `json:"sound_pos"`
}

func jukeboxesHandler(w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		active := w.Registry().Active()
		out := make([]jukeboxView, 0, len(active))
		for _, s := range active {
			out = append(out, jukeboxView{
				World:      s.Key.World,
				Pos:        [3]int{s.Key.X, s.Key.Y, s.Key.Z},
				Name:       s.Record.Name,
				ItemID:     s.Record.ItemID,
				SoundEvent: s.Record.SoundEvent,
				Duration:   s.Record.DurationSeconds,
				Generation: s.Generation,
				SoundPos:   s.Pos.ToArray(),
			})
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].World != out[j].World {
				return out[i].World < out[j].World
			}
			a, b := out[i].Pos, out[j].Pos
			if a[0] != b[0] {
				return a[0] < b[0]
			}
			if a[1] != b[1] {
				return a[1] < b[1]
			}
			return a[2] < b[2]
		})
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(struct {
			WorldID   string        `json:"world_id"`
			Tick      uint64        `json:"tick"`
			Jukeboxes []jukeboxView `json:"jukeboxes"`
		}{
			WorldID:   w.ID(),
			Tick:      w.CurrentTick(),
			Jukeboxes: out,
		})
	}
}

func metricsHandler(w *world.World, pr *packRuntime, idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		id := w.ID()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP customjukebox_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE customjukebox_world_tick gauge\n")
		fmt.Fprintf(rw, "customjukebox_world_tick{world=%q} %d\n", id, w.CurrentTick())

		fmt.Fprintf(rw, "# HELP customjukebox_world_occupants Current number of occupants in the world.\n")
		fmt.Fprintf(rw, "# TYPE customjukebox_world_occupants gauge\n")
		fmt.Fprintf(rw, "customjukebox_world_occupants{world=%q} %d\n", id, w.OccupantCount())

		fmt.Fprintf(rw, "# HELP customjukebox_jukeboxes_playing Jukebox slots currently playing a record.\n")
		fmt.Fprintf(rw, "# TYPE customjukebox_jukeboxes_playing gauge\n")
		fmt.Fprintf(rw, "customjukebox_jukeboxes_playing{world=%q} %d\n", id, w.Registry().Len())

		fmt.Fprintf(rw, "# HELP customjukebox_catalog_records Records the world can play.\n")
		fmt.Fprintf(rw, "# TYPE customjukebox_catalog_records gauge\n")
		fmt.Fprintf(rw, "customjukebox_catalog_records{world=%q} %d\n", id, w.CatalogSize())

		if pr != nil {
			fmt.Fprintf(rw, "# HELP customjukebox_pack_last_build_ok Whether the last pack build succeeded (1) or failed (0).\n")
			fmt.Fprintf(rw, "# TYPE customjukebox_pack_last_build_ok gauge\n")
			fmt.Fprintf(rw, "customjukebox_pack_last_build_ok %d\n", boolGauge(pr.lastOK.Load()))

			fmt.Fprintf(rw, "# HELP customjukebox_pack_builds_total Pack builds attempted.\n")
			fmt.Fprintf(rw, "# TYPE customjukebox_pack_builds_total counter\n")
			fmt.Fprintf(rw, "customjukebox_pack_builds_total %d\n", pr.builds.Load())

			fmt.Fprintf(rw, "# HELP customjukebox_pack_build_failures_total Pack builds that failed.\n")
			fmt.Fprintf(rw, "# TYPE customjukebox_pack_build_failures_total counter\n")
			fmt.Fprintf(rw, "customjukebox_pack_build_failures_total %d\n", pr.failures.Load())

			fmt.Fprintf(rw, "# HELP customjukebox_pack_records Records included in the served pack.\n")
			fmt.Fprintf(rw, "# TYPE customjukebox_pack_records gauge\n")
			fmt.Fprintf(rw, "customjukebox_pack_records %d\n", pr.included.Load())
		}

		if idx != nil {
			s := idx.Stats()
			fmt.Fprintf(rw, "# HELP customjukebox_index_queue_depth Current index writer queue depth.\n")
			fmt.Fprintf(rw, "# TYPE customjukebox_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "customjukebox_index_queue_depth %d\n", s.QueueDepth)

			fmt.Fprintf(rw, "# HELP customjukebox_index_queue_capacity Index writer queue capacity.\n")
			fmt.Fprintf(rw, "# TYPE customjukebox_index_queue_capacity gauge\n")
			fmt.Fprintf(rw, "customjukebox_index_queue_capacity %d\n", s.QueueCapacity)

			fmt.Fprintf(rw, "# HELP customjukebox_index_dropped_total Rows dropped because the index writer fell behind.\n")
			fmt.Fprintf(rw, "# TYPE customjukebox_index_dropped_total counter\n")
			fmt.Fprintf(rw, "customjukebox_index_dropped_total{kind=%q} %d\n", "audit", s.DropAuditTotal)
			fmt.Fprintf(rw, "customjukebox_index_dropped_total{kind=%q} %d\n", "build", s.DropBuildTotal)
		}
	}
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
