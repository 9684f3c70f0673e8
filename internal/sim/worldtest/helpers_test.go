package worldtest

import (
	"testing"

	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/geom"
	"github.com/HBIDamian/CustomJukebox/internal/sim/jukebox"
	"github.com/HBIDamian/CustomJukebox/internal/sim/tuning"
	world "github.com/HBIDamian/CustomJukebox/internal/sim/world"
)

var slotA = geom.BlockPos{X: 0, Y: 64, Z: 0}
var slotB = geom.BlockPos{X: 8, Y: 64, Z: 0}

func shortCatalog(t *testing.T) *catalogs.Catalog {
	t.Helper()
	cat, err := catalogs.Load([]tuning.RecordEntry{
		{Name: "NGGYU", File: "track1.ogg", Length: 5},
		{Name: "Other", File: "track2.ogg", Length: 10},
	}, catalogs.Options{ItemNamespace: "customjukebox", SoundNamespace: "customjukebox"}, nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return cat
}

func defaultConfig() world.WorldConfig {
	return world.WorldConfig{
		ID:         "overworld",
		TickRateHz: 20,
		Spawn:      geom.Vec3{X: 0.5, Y: 64, Z: 0.5},
	}
}

func jukeboxKey(p geom.BlockPos) jukebox.SlotKey {
	return jukebox.KeyAt("overworld", p)
}
