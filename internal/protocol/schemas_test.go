package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/HBIDamian/CustomJukebox/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	// Messages are validated in their wire form.
	asJSON := func(v any) any {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return out
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(asJSON(v)); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	playSchema := compile("play_sound.schema.json")
	actionSchema := compile("action.schema.json")

	validate(helloSchema, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Name: "steve"})

	validate(welcomeSchema, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		OccupantID:      "P1",
		WorldID:         "overworld",
		TickRateHz:      20,
		Pack: &protocol.PackRef{
			URL:        "/v1/pack",
			SHA256:     "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
			Size:       1024,
			HeaderUUID: "2f1b7a8e-1c1b-4d8e-9c61-0b2f8f1e4a11",
			Version:    [3]int{1, 0, 0},
			Required:   true,
		},
		Records: []protocol.RecordInfo{{ItemID: "customjukebox:0", Name: "NGGYU", SoundEvent: "customjukebox.track1", DurationSeconds: 5}},
	})

	validate(playSchema, protocol.PlaySoundMsg{
		Type:            protocol.TypePlaySound,
		ProtocolVersion: protocol.Version,
		Tick:            3,
		Sound:           "customjukebox.track1",
		Pos:             [3]float64{0.5, 64.5, 0.5},
		Volume:          0,
		Pitch:           1,
	})

	validate(actionSchema, protocol.MoveMsg{Type: protocol.TypeMove, ProtocolVersion: protocol.Version, Pos: [3]float64{1, 64, 1}})
	validate(actionSchema, protocol.HoldMsg{Type: protocol.TypeHold, ProtocolVersion: protocol.Version, ItemID: "customjukebox:0"})
	validate(actionSchema, protocol.InteractMsg{Type: protocol.TypeInteract, ProtocolVersion: protocol.Version, Pos: [3]int{0, 64, 0}})
	validate(actionSchema, protocol.BreakMsg{Type: protocol.TypeBreak, ProtocolVersion: protocol.Version, Pos: [3]int{0, 64, 0}})

	var bad any
	_ = json.Unmarshal([]byte(`{"type":"INTERACT","protocol_version":"1.0"}`), &bad)
	if err := actionSchema.Validate(bad); err == nil {
		t.Fatalf("INTERACT without pos should be rejected")
	}
}
