package worldtest

import (
	"testing"

	"github.com/HBIDamian/CustomJukebox/internal/protocol"
	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/geom"
	"github.com/HBIDamian/CustomJukebox/internal/sim/tuning"
	world "github.com/HBIDamian/CustomJukebox/internal/sim/world"
)

func TestJukebox_ShortRecordAutoEjectsAfterItsDuration(t *testing.T) {
	h := NewHarness(t, defaultConfig(), shortCatalog(t), "steve")
	id := h.DefaultID

	h.Hold(id, "customjukebox:0", 1)
	at := h.Interact(id, slotA)

	start := h.Sounds(id)
	if len(start) != 1 || start[0].Sound != "customjukebox.track1" || start[0].Volume != 1 || start[0].Pitch != 1 {
		t.Fatalf("start=%+v", start)
	}
	if start[0].Pos != slotA.Center().ToArray() {
		t.Fatalf("start pos=%v", start[0].Pos)
	}
	if held := h.Held(id); len(held) != 2 || held[1].Item != nil {
		t.Fatalf("held updates=%+v", held)
	}

	h.StepUntil(at + 100)
	if len(h.Drops(id)) != 0 {
		t.Fatalf("dropped before the record finished")
	}
	h.StepNoop()

	drops := h.Drops(id)
	if len(drops) != 1 {
		t.Fatalf("drops=%d want 1", len(drops))
	}
	if drops[0].Tick != at+100 || drops[0].Pos != slotA.Center().ToArray() {
		t.Fatalf("drop=%+v", drops[0])
	}
	if drops[0].Item.Tags[world.TagRecordItem] != "customjukebox:0" || drops[0].Item.DisplayName != "NGGYU" {
		t.Fatalf("dropped item=%+v", drops[0].Item)
	}
	sounds := h.Sounds(id)
	if last := sounds[len(sounds)-1]; last.Volume != 0 || last.Sound != "customjukebox.track1" {
		t.Fatalf("last sound=%+v", last)
	}
}

func TestJukebox_SlotsAreIndependent(t *testing.T) {
	h := NewHarness(t, defaultConfig(), shortCatalog(t), "steve")
	id := h.DefaultID

	h.Hold(id, "customjukebox:0", 1)
	h.Interact(id, slotA)
	h.Hold(id, "customjukebox:1", 1)
	h.Interact(id, slotB)

	if n := h.W.Registry().Len(); n != 2 {
		t.Fatalf("active=%d want 2", n)
	}
	h.Interact(id, slotA)
	active := h.W.Registry().Active()
	if len(active) != 1 || active[0].Key.Pos() != slotB {
		t.Fatalf("active=%+v", active)
	}
}

func TestJukebox_InteractOnTheExpiryTickReinserts(t *testing.T) {
	h := NewHarness(t, defaultConfig(), shortCatalog(t), "steve")
	id := h.DefaultID

	h.Hold(id, "customjukebox:0", 2)
	at := h.Interact(id, slotA)
	h.StepUntil(at + 100)

	// The timer runs before actions, so this interaction finds an idle slot
	// and inserts the second disc.
	h.Interact(id, slotA)

	if len(h.Drops(id)) != 1 {
		t.Fatalf("drops=%d want 1", len(h.Drops(id)))
	}
	if !h.W.Registry().Playing(jukeboxKey(slotA)) {
		t.Fatalf("second disc should be playing")
	}
	if held := h.Held(id); held[len(held)-1].Item != nil {
		t.Fatalf("stack should be empty, got %+v", held[len(held)-1].Item)
	}
}

func TestJukebox_LeaverMissesStop(t *testing.T) {
	h := NewHarness(t, defaultConfig(), shortCatalog(t), "steve")
	alex := h.Join("alex")

	h.Hold(h.DefaultID, "customjukebox:0", 1)
	h.Interact(h.DefaultID, slotA)
	if len(h.Sounds(alex)) != 1 {
		t.Fatalf("alex should hear the start")
	}
	h.Leave(alex)

	h.Interact(h.DefaultID, slotA)
	sounds := h.Sounds(h.DefaultID)
	if last := sounds[len(sounds)-1]; last.Volume != 0 {
		t.Fatalf("steve did not get the stop: %+v", last)
	}
	if h.W.OccupantCount() != 1 {
		t.Fatalf("occupants=%d", h.W.OccupantCount())
	}
}

func TestJukebox_WalkingOutOfRangeStillGetsStop(t *testing.T) {
	h := NewHarness(t, defaultConfig(), shortCatalog(t), "steve")
	alex := h.Join("alex")

	h.Hold(h.DefaultID, "customjukebox:1", 1)
	h.Interact(h.DefaultID, slotA)
	h.Move(alex, geom.Vec3{X: 500, Y: 64, Z: 500})
	h.ClearMessages()
	h.Break(h.DefaultID, slotA)

	stops := h.Sounds(alex)
	if len(stops) != 1 || stops[0].Volume != 0 || stops[0].Pos != [3]float64{500, 64, 500} {
		t.Fatalf("alex stop=%+v", stops)
	}
	if len(h.Drops(alex)) != 1 {
		t.Fatalf("drop should be visible to everyone")
	}
}

func TestJukebox_UnknownDiscReportsError(t *testing.T) {
	h := NewHarness(t, defaultConfig(), shortCatalog(t), "steve")
	h.Hold(h.DefaultID, "customjukebox:42", 1)

	errs := h.Errors(h.DefaultID)
	if len(errs) != 1 || errs[0].Code != protocol.ErrUnknownRecord {
		t.Fatalf("errors=%+v", errs)
	}
}

func TestJukebox_ConfigCatalogLoads(t *testing.T) {
	tu, err := tuning.Load("../../../configs/jukebox.yaml")
	if err != nil {
		t.Fatalf("tuning: %v", err)
	}
	cat, err := catalogs.Load(tu.Records, catalogs.OptionsFromTuning(tu), nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	h := NewHarness(t, world.ConfigFromTuning("overworld", tu), cat, "steve")

	h.Hold(h.DefaultID, "customjukebox:2", 1)
	at := h.Interact(h.DefaultID, slotA)
	active := h.W.Registry().Active()
	if len(active) != 1 || active[0].Record.SoundEvent != "customjukebox.untitled" {
		t.Fatalf("active=%+v", active)
	}

	// No length configured: default duration applies.
	h.StepUntil(at + uint64(tu.DefaultDurationSeconds*tu.TickRateHz) + 1)
	if h.W.Registry().Len() != 0 {
		t.Fatalf("record without length should eject after the default duration")
	}
}
