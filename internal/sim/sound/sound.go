package sound

import (
	"github.com/HBIDamian/CustomJukebox/internal/sim/geom"
)

const DefaultRadius = 16.0

// Signal is one positioned playback instruction for a single listener.
// A zero Volume means "stop this sound".
type Signal struct {
	Sound  string
	Pos    geom.Vec3
	Volume float64
	Pitch  float64
}

type Listener struct {
	ID  string
	Pos geom.Vec3
}

// Occupants lists who is currently present in a world.
type Occupants interface {
	Listeners(world string) []Listener
}

// Transport delivers a signal to one listener.
type Transport interface {
	Send(listenerID string, sig Signal)
}

type Config struct {
	Radius float64
	Volume float64
	Pitch  float64
}

type Broadcaster struct {
	occ      Occupants
	tr       Transport
	radiusSq float64
	volume   float64
	pitch    float64
}

func NewBroadcaster(occ Occupants, tr Transport, cfg Config) *Broadcaster {
	if cfg.Radius <= 0 {
		cfg.Radius = DefaultRadius
	}
	if cfg.Volume <= 0 {
		cfg.Volume = 1
	}
	if cfg.Pitch <= 0 {
		cfg.Pitch = 1
	}
	return &Broadcaster{
		occ:      occ,
		tr:       tr,
		radiusSq: cfg.Radius * cfg.Radius,
		volume:   cfg.Volume,
		pitch:    cfg.Pitch,
	}
}

// Start sends the sound to every listener within the hearing radius of pos and
// returns how many were reached.
func (b *Broadcaster) Start(world string, pos geom.Vec3, sound string) int {
	n := 0
	for _, l := range b.occ.Listeners(world) {
		if l.Pos.DistSq(pos) > b.radiusSq {
			continue
		}
		b.tr.Send(l.ID, Signal{Sound: sound, Pos: pos, Volume: b.volume, Pitch: b.pitch})
		n++
	}
	return n
}

// Stop sends a zero-volume signal for sound to every listener in the world,
// regardless of distance. Listeners that walked out of range after Start
// still need the stop.
func (b *Broadcaster) Stop(world string, sound string) int {
	n := 0
	for _, l := range b.occ.Listeners(world) {
		b.tr.Send(l.ID, Signal{Sound: sound, Pos: l.Pos, Volume: 0, Pitch: b.pitch})
		n++
	}
	return n
}
