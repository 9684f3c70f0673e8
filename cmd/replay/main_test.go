package main

import (
	"path/filepath"
	"testing"

	persistlog "github.com/HBIDamian/CustomJukebox/internal/persistence/log"
	"github.com/HBIDamian/CustomJukebox/internal/protocol"
	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/geom"
	"github.com/HBIDamian/CustomJukebox/internal/sim/tuning"
	"github.com/HBIDamian/CustomJukebox/internal/sim/world"
)

func entry(tick uint64, actor, action string, x int, sound string) world.AuditEntry {
	return world.AuditEntry{Tick: tick, Actor: actor, Action: action, World: "overworld", Pos: [3]int{x, 64, 0}, SoundEvent: sound}
}

func TestReplay_CleanLog(t *testing.T) {
	r := replay([]world.AuditEntry{
		entry(2, "P1", world.AuditInsert, 0, "customjukebox.a"),
		entry(3, "P1", world.AuditInsert, 5, "customjukebox.b"),
		entry(102, world.ActorSystem, world.AuditAutoEject, 0, "customjukebox.a"),
		entry(110, "P2", world.AuditEject, 5, "customjukebox.b"),
		entry(120, "P2", world.AuditInsert, 5, "customjukebox.a"),
	}, 0)
	if len(r.Violations) != 0 {
		t.Fatalf("violations=%+v", r.Violations)
	}
	if r.Checked != 5 || r.Sessions != 1 || len(r.Playing) != 1 || r.Playing[0].SinceTick != 120 {
		t.Fatalf("report=%+v", r)
	}
}

func TestReplay_FlagsViolations(t *testing.T) {
	r := replay([]world.AuditEntry{
		entry(2, "P1", world.AuditInsert, 0, "customjukebox.a"),
		entry(3, "P2", world.AuditInsert, 0, "customjukebox.b"),
		entry(4, "P2", world.AuditEject, 1, "customjukebox.b"),
		entry(5, "P2", world.AuditAutoEject, 0, "customjukebox.a"),
	}, 0)
	if len(r.Violations) != 4 {
		t.Fatalf("violations=%+v", r.Violations)
	}
	if r.Violations[0].Seq != 2 || r.Violations[1].Seq != 3 {
		t.Fatalf("violations=%+v", r.Violations)
	}
}

func TestReplay_RestartResetsSlots(t *testing.T) {
	entries := []world.AuditEntry{
		entry(500, "P1", world.AuditInsert, 0, "customjukebox.a"),
		// Server restarted; the slot was cleared at shutdown.
		entry(7, "P1", world.AuditInsert, 0, "customjukebox.b"),
		entry(40, "P1", world.AuditEject, 0, "customjukebox.b"),
		entry(41, "P1", world.AuditInsert, 0, "customjukebox.a"),
	}
	r := replay(entries, 0)
	if len(r.Violations) != 0 || r.Sessions != 2 || len(r.Playing) != 1 {
		t.Fatalf("report=%+v", r)
	}

	r = replay(entries, 40)
	if r.Checked != 3 || len(r.Playing) != 0 {
		t.Fatalf("at tick 40: report=%+v", r)
	}
}

func TestReplay_WorldAuditLog(t *testing.T) {
	dir := t.TempDir()
	cat, err := catalogs.Load([]tuning.RecordEntry{{Name: "A", File: "a.ogg", Length: 1}},
		catalogs.Options{ItemNamespace: "customjukebox", SoundNamespace: "customjukebox"}, nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	w, err := world.New(world.WorldConfig{ID: "overworld", TickRateHz: 20}, cat)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	audit := persistlog.NewAuditLogger(dir)
	w.SetAuditLogger(audit)

	out := make(chan []byte, 256)
	resp := make(chan world.JoinResponse, 1)
	w.StepOnce([]world.JoinRequest{{Name: "steve", Out: out, Resp: resp}}, nil, nil)
	id := (<-resp).Welcome.OccupantID
	do := func(a world.Action) {
		w.StepOnce(nil, nil, []world.ActionEnvelope{{OccupantID: id, Action: a}})
	}
	jb := geom.BlockPos{X: 1, Y: 64, Z: 1}
	do(world.Action{Type: protocol.TypeHold, ItemID: "customjukebox:0", Count: 2})
	do(world.Action{Type: protocol.TypeInteract, Block: jb})
	for i := 0; i < 25; i++ {
		w.StepOnce(nil, nil, nil)
	}
	do(world.Action{Type: protocol.TypeInteract, Block: jb})
	do(world.Action{Type: protocol.TypeBreak, Block: jb})
	if err := audit.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := persistlog.AuditFiles(dir)
	if err != nil || len(files) == 0 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	var entries []world.AuditEntry
	for _, f := range files {
		es, err := persistlog.ReadAll[world.AuditEntry](filepath.Clean(f))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		entries = append(entries, es...)
	}
	r := replay(entries, 0)
	if len(r.Violations) != 0 {
		t.Fatalf("violations=%+v", r.Violations)
	}
	// insert, auto-eject, insert, destroy
	if r.Checked != 4 || len(r.Playing) != 0 {
		t.Fatalf("report=%+v entries=%+v", r, entries)
	}
}
