package world

import (
	"github.com/HBIDamian/CustomJukebox/internal/protocol"
	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/geom"
)

// TagRecordItem carries a disc's record identifier. Lookups go through this
// tag, never through the display name.
const TagRecordItem = "customjukebox:item"

const maxStack = 64

type Item struct {
	ID          string
	Count       int
	DisplayName string
	Lore        []string
	Tags        map[string]string
}

// DiscItem is the held form of a record.
func DiscItem(rec catalogs.Record, count int) Item {
	if count < 1 {
		count = 1
	}
	return Item{
		ID:          rec.ItemID,
		Count:       count,
		DisplayName: rec.Name,
		Lore:        append([]string(nil), rec.Lore...),
		Tags:        map[string]string{TagRecordItem: rec.ItemID},
	}
}

// RecordItemID returns the record identifier a disc carries.
func (it Item) RecordItemID() (string, bool) {
	id, ok := it.Tags[TagRecordItem]
	return id, ok && id != ""
}

func (it Item) ref() protocol.ItemRef {
	var tags map[string]string
	if len(it.Tags) > 0 {
		tags = make(map[string]string, len(it.Tags))
		for k, v := range it.Tags {
			tags[k] = v
		}
	}
	return protocol.ItemRef{
		ID:          it.ID,
		Count:       it.Count,
		DisplayName: it.DisplayName,
		Lore:        append([]string(nil), it.Lore...),
		Tags:        tags,
	}
}

// ItemEntity is an item lying in the world.
type ItemEntity struct {
	EntityID  string
	Pos       geom.Vec3
	Item      Item
	SpawnTick uint64
}
