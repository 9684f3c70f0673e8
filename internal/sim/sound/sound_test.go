package sound

import (
	"testing"

	"github.com/HBIDamian/CustomJukebox/internal/sim/geom"
)

type fakeWorld map[string][]Listener

func (f fakeWorld) Listeners(world string) []Listener { return f[world] }

type sent struct {
	to  string
	sig Signal
}

type recorder struct{ out []sent }

func (r *recorder) Send(id string, sig Signal) { r.out = append(r.out, sent{to: id, sig: sig}) }

func TestStart_FiltersByRadius(t *testing.T) {
	w := fakeWorld{
		"world": {
			{ID: "near", Pos: geom.Vec3{X: 10}},
			{ID: "far", Pos: geom.Vec3{X: 20}},
		},
		"nether": {{ID: "other", Pos: geom.Vec3{}}},
	}
	rec := &recorder{}
	b := NewBroadcaster(w, rec, Config{Radius: 16})

	if n := b.Start("world", geom.Vec3{}, "customjukebox.track1"); n != 1 {
		t.Fatalf("reached=%d want 1", n)
	}
	if len(rec.out) != 1 || rec.out[0].to != "near" {
		t.Fatalf("sent=%+v", rec.out)
	}
	if rec.out[0].sig.Volume <= 0 || rec.out[0].sig.Sound != "customjukebox.track1" {
		t.Fatalf("signal=%+v", rec.out[0].sig)
	}
}

func TestStart_EdgeOfRadiusIncluded(t *testing.T) {
	w := fakeWorld{"world": {{ID: "edge", Pos: geom.Vec3{Y: 16}}}}
	rec := &recorder{}
	b := NewBroadcaster(w, rec, Config{})
	if n := b.Start("world", geom.Vec3{}, "s"); n != 1 {
		t.Fatalf("reached=%d want 1", n)
	}
}

func TestStop_ReachesEveryoneWithZeroVolume(t *testing.T) {
	w := fakeWorld{
		"world": {
			{ID: "near", Pos: geom.Vec3{X: 1}},
			{ID: "far", Pos: geom.Vec3{X: 500}},
		},
	}
	rec := &recorder{}
	b := NewBroadcaster(w, rec, Config{Radius: 16})
	if n := b.Stop("world", "customjukebox.track1"); n != 2 {
		t.Fatalf("reached=%d want 2", n)
	}
	for _, s := range rec.out {
		if s.sig.Volume != 0 {
			t.Fatalf("stop volume=%v want 0", s.sig.Volume)
		}
	}
}
