package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	persistlog "github.com/HBIDamian/CustomJukebox/internal/persistence/log"
	"github.com/HBIDamian/CustomJukebox/internal/sim/jukebox"
	"github.com/HBIDamian/CustomJukebox/internal/sim/world"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		worldID  = flag.String("world", "overworld", "world id")
		auditDir = flag.String("audit", "", "world dir containing audit/ (default: <data>/worlds/<world>)")
		atTick   = flag.Uint64("at_tick", 0, "stop replaying after this tick of the last session (optional)")
	)
	flag.Parse()

	dir := *auditDir
	if dir == "" {
		dir = filepath.Join(*dataDir, "worlds", *worldID)
	}
	files, err := persistlog.AuditFiles(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list audit:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no audit files found in", dir)
		os.Exit(1)
	}

	var entries []world.AuditEntry
	for _, path := range files {
		es, err := persistlog.ReadAll[world.AuditEntry](path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read audit:", err)
			os.Exit(1)
		}
		entries = append(entries, es...)
	}

	r := replay(entries, *atTick)
	for _, v := range r.Violations {
		fmt.Printf("violation: #%d tick=%d %s %s: %s\n", v.Seq, v.Entry.Tick, v.Entry.Action, v.Key, v.Reason)
	}
	for _, p := range r.Playing {
		fmt.Printf("playing: %s %s since tick=%d\n", p.Key, p.SoundEvent, p.SinceTick)
	}
	fmt.Printf("replay: entries=%d sessions=%d playing=%d violations=%d\n", r.Checked, r.Sessions, len(r.Playing), len(r.Violations))
	if len(r.Violations) > 0 {
		os.Exit(1)
	}
}

type violation struct {
	Seq    int
	Key    jukebox.SlotKey
	Entry  world.AuditEntry
	Reason string
}

type playing struct {
	Key        jukebox.SlotKey
	SoundEvent string
	ItemID     string
	SinceTick  uint64
}

type report struct {
	Checked    int
	Sessions   int
	Playing    []playing
	Violations []violation
}

// replay walks audit entries in log order and checks that every slot
// alternates between idle and playing. A tick going backwards starts a new
// server session; shutdown stops every slot without an audit entry, so state
// resets there. atTick, when non-zero, stops within the last session.
func replay(entries []world.AuditEntry, atTick uint64) report {
	var r report
	slots := map[jukebox.SlotKey]playing{}
	var lastTick uint64

	lastStart := 0
	for i := 1; i < len(entries); i++ {
		if entries[i].Tick < entries[i-1].Tick {
			lastStart = i
		}
	}

	for i, e := range entries {
		if i == 0 || e.Tick < lastTick {
			r.Sessions++
			slots = map[jukebox.SlotKey]playing{}
		}
		lastTick = e.Tick
		if atTick != 0 && i >= lastStart && e.Tick > atTick {
			break
		}
		r.Checked++

		key := jukebox.SlotKey{World: e.World, X: e.Pos[0], Y: e.Pos[1], Z: e.Pos[2]}
		cur, busy := slots[key]
		bad := func(reason string) {
			r.Violations = append(r.Violations, violation{Seq: i + 1, Key: key, Entry: e, Reason: reason})
		}

		switch e.Action {
		case world.AuditInsert:
			if busy {
				bad(fmt.Sprintf("slot already playing %s", cur.SoundEvent))
			}
			slots[key] = playing{Key: key, SoundEvent: e.SoundEvent, ItemID: e.ItemID, SinceTick: e.Tick}
		case world.AuditEject, world.AuditAutoEject, world.AuditDestroy:
			if !busy {
				bad("slot was idle")
				continue
			}
			if cur.SoundEvent != e.SoundEvent {
				bad(fmt.Sprintf("slot was playing %s", cur.SoundEvent))
			}
			if e.Action == world.AuditAutoEject && e.Actor != world.ActorSystem {
				bad("auto-eject by " + e.Actor)
			}
			delete(slots, key)
		default:
			bad("unknown action")
		}
	}

	for _, p := range slots {
		r.Playing = append(r.Playing, p)
	}
	sort.Slice(r.Playing, func(i, j int) bool { return r.Playing[i].Key.String() < r.Playing[j].Key.String() })
	return r
}
