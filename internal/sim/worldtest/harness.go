package worldtest

import (
	"encoding/json"
	"testing"

	"github.com/HBIDamian/CustomJukebox/internal/protocol"
	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/geom"
	world "github.com/HBIDamian/CustomJukebox/internal/sim/world"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - Join() issues JoinRequest via StepOnce()
// - Hold/Interact/Break/Move issue one action via StepOnce()
// - Per-occupant Out channels are decoded into typed message logs
//
// It avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T   *testing.T
	Cat *catalogs.Catalog
	W   *world.World

	DefaultID string

	sessions map[string]*session
}

type session struct {
	ID     string
	Out    chan []byte
	Sounds []protocol.PlaySoundMsg
	Drops  []protocol.ItemDropMsg
	Held   []protocol.HeldMsg
	Errors []protocol.ErrorMsg
}

func NewHarness(t *testing.T, cfg world.WorldConfig, cat *catalogs.Catalog, name string) *Harness {
	t.Helper()

	w, err := world.New(cfg, cat)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	h := &Harness{
		T:        t,
		Cat:      cat,
		W:        w,
		sessions: map[string]*session{},
	}
	h.DefaultID = h.Join(name)
	return h
}

func (h *Harness) Join(name string) string {
	h.T.Helper()

	out := make(chan []byte, 256)
	resp := make(chan world.JoinResponse, 1)
	h.W.StepOnce([]world.JoinRequest{{Name: name, Out: out, Resp: resp}}, nil, nil)
	jr := <-resp
	if jr.Welcome.OccupantID == "" {
		h.T.Fatalf("join returned empty occupant id")
	}
	s := &session{ID: jr.Welcome.OccupantID, Out: out}
	h.sessions[s.ID] = s
	return s.ID
}

func (h *Harness) Leave(id string) {
	h.T.Helper()
	h.W.StepOnce(nil, []string{id}, nil)
	h.drainAll()
	delete(h.sessions, id)
}

func (h *Harness) StepMulti(actions []world.ActionEnvelope) {
	h.T.Helper()
	h.W.StepOnce(nil, nil, actions)
	h.drainAll()
}

func (h *Harness) StepFor(id string, a world.Action) {
	h.StepMulti([]world.ActionEnvelope{{OccupantID: id, Action: a}})
}

func (h *Harness) StepNoop() {
	h.StepMulti(nil)
}

// StepUntil steps until the world tick reaches tick.
func (h *Harness) StepUntil(tick uint64) {
	for h.W.CurrentTick() < tick {
		h.StepNoop()
	}
}

func (h *Harness) Hold(id, itemID string, count int) {
	h.StepFor(id, world.Action{Type: protocol.TypeHold, ItemID: itemID, Count: count})
}

func (h *Harness) Move(id string, pos geom.Vec3) {
	h.StepFor(id, world.Action{Type: protocol.TypeMove, Pos: pos})
}

// Interact returns the tick the interaction was applied on.
func (h *Harness) Interact(id string, p geom.BlockPos) uint64 {
	tick := h.W.CurrentTick()
	h.StepFor(id, world.Action{Type: protocol.TypeInteract, Block: p})
	return tick
}

func (h *Harness) Break(id string, p geom.BlockPos) {
	h.StepFor(id, world.Action{Type: protocol.TypeBreak, Block: p})
}

func (h *Harness) Sounds(id string) []protocol.PlaySoundMsg { return h.get(id).Sounds }
func (h *Harness) Drops(id string) []protocol.ItemDropMsg   { return h.get(id).Drops }
func (h *Harness) Held(id string) []protocol.HeldMsg        { return h.get(id).Held }
func (h *Harness) Errors(id string) []protocol.ErrorMsg     { return h.get(id).Errors }

// ClearMessages forgets everything received so far.
func (h *Harness) ClearMessages() {
	for _, s := range h.sessions {
		s.Sounds, s.Drops, s.Held, s.Errors = nil, nil, nil, nil
	}
}

func (h *Harness) get(id string) *session {
	h.T.Helper()
	s := h.sessions[id]
	if s == nil {
		h.T.Fatalf("unknown occupant id: %q", id)
	}
	return s
}

func (h *Harness) drainAll() {
	h.T.Helper()
	for _, s := range h.sessions {
		h.drainOne(s)
	}
}

func (h *Harness) drainOne(s *session) {
	h.T.Helper()
	for {
		select {
		case b := <-s.Out:
			base, err := protocol.DecodeBase(b)
			if err != nil {
				h.T.Fatalf("decode: %v", err)
			}
			var target any
			switch base.Type {
			case protocol.TypePlaySound:
				s.Sounds = append(s.Sounds, protocol.PlaySoundMsg{})
				target = &s.Sounds[len(s.Sounds)-1]
			case protocol.TypeItemDrop:
				s.Drops = append(s.Drops, protocol.ItemDropMsg{})
				target = &s.Drops[len(s.Drops)-1]
			case protocol.TypeHeld:
				s.Held = append(s.Held, protocol.HeldMsg{})
				target = &s.Held[len(s.Held)-1]
			case protocol.TypeError:
				s.Errors = append(s.Errors, protocol.ErrorMsg{})
				target = &s.Errors[len(s.Errors)-1]
			default:
				h.T.Fatalf("unexpected message type %q", base.Type)
			}
			if err := json.Unmarshal(b, target); err != nil {
				h.T.Fatalf("decode %s: %v", base.Type, err)
			}
		default:
			return
		}
	}
}
