package world

import (
	"log"

	"github.com/HBIDamian/CustomJukebox/internal/protocol"
	"github.com/HBIDamian/CustomJukebox/internal/sim/geom"
	"github.com/HBIDamian/CustomJukebox/internal/sim/sound"
	"github.com/HBIDamian/CustomJukebox/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	Spawn      geom.Vec3

	// Sound is the hearing radius, volume and pitch used for record playback.
	Sound sound.Config

	// ItemDespawnTicks removes dropped discs nobody picked up. Zero keeps them.
	ItemDespawnTicks uint64

	// Pack is advertised in WELCOME. Nil when no artifact is available.
	Pack *protocol.PackRef

	Logger         *log.Logger
	RegistryLogger *log.Logger
}

func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:         id,
		TickRateHz: t.TickRateHz,
		Spawn:      geom.Vec3{X: 0.5, Y: 64, Z: 0.5},
		Sound: sound.Config{
			Radius: t.HearingRadius,
			Volume: t.PlayVolume,
			Pitch:  t.PlayPitch,
		},
		ItemDespawnTicks: uint64(t.TickRateHz) * 300,
	}
}
