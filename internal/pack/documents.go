package pack

import (
	"strconv"

	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
)

const (
	soundDefinitionsFormat = "1.14.0"
	itemFormat             = "1.20.50"
	manifestFormat         = 2
	atlasName              = "atlas.items"
	recordCategory         = "records"
)

type SoundDefinitions struct {
	FormatVersion    string                     `json:"format_version"`
	SoundDefinitions map[string]SoundDefinition `json:"sound_definitions"`
}

type SoundDefinition struct {
	Category string   `json:"category"`
	Sounds   []string `json:"sounds"`
}

type ItemDocument struct {
	FormatVersion string   `json:"format_version"`
	Item          ItemBody `json:"minecraft:item"`
}

type ItemBody struct {
	Description ItemDescription `json:"description"`
	Components  ItemComponents  `json:"components"`
}

type ItemDescription struct {
	Identifier   string       `json:"identifier"`
	MenuCategory MenuCategory `json:"menu_category"`
}

type MenuCategory struct {
	Category string `json:"category"`
	Group    string `json:"group,omitempty"`
}

type ItemComponents struct {
	Icon         IconComponent        `json:"minecraft:icon"`
	DisplayName  DisplayNameComponent `json:"minecraft:display_name"`
	MaxStackSize int                  `json:"minecraft:max_stack_size"`
	Record       RecordComponent      `json:"minecraft:record"`
	Tags         TagsComponent        `json:"minecraft:tags"`
}

type IconComponent struct {
	Texture string `json:"texture"`
}

type DisplayNameComponent struct {
	Value string `json:"value"`
}

type RecordComponent struct {
	SoundEvent       string `json:"sound_event"`
	Duration         int    `json:"duration"`
	ComparatorSignal int    `json:"comparator_signal"`
}

type TagsComponent struct {
	Tags []string `json:"tags"`
}

type ItemTextureAtlas struct {
	ResourcePackName string                  `json:"resource_pack_name"`
	TextureName      string                  `json:"texture_name"`
	TextureData      map[string]TextureEntry `json:"texture_data"`
}

type TextureEntry struct {
	Textures string `json:"textures"`
}

type Manifest struct {
	FormatVersion int              `json:"format_version"`
	Header        ManifestHeader   `json:"header"`
	Modules       []ManifestModule `json:"modules"`
}

type ManifestHeader struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	UUID             string `json:"uuid"`
	Version          [3]int `json:"version"`
	MinEngineVersion [3]int `json:"min_engine_version"`
}

type ManifestModule struct {
	Type    string `json:"type"`
	UUID    string `json:"uuid"`
	Version [3]int `json:"version"`
}

// atlasKey is the texture atlas key and file stem for a record.
func atlasKey(r catalogs.Record) string { return strconv.Itoa(r.Index) }

func soundPath(r catalogs.Record) string { return "sounds/" + r.BaseName() }

func newSoundDefinitions(recs []catalogs.Record) SoundDefinitions {
	defs := make(map[string]SoundDefinition, len(recs))
	for _, r := range recs {
		defs[r.SoundEvent] = SoundDefinition{
			Category: recordCategory,
			Sounds:   []string{soundPath(r)},
		}
	}
	return SoundDefinitions{FormatVersion: soundDefinitionsFormat, SoundDefinitions: defs}
}

func newItemDocument(r catalogs.Record) ItemDocument {
	return ItemDocument{
		FormatVersion: itemFormat,
		Item: ItemBody{
			Description: ItemDescription{
				Identifier:   r.ItemID,
				MenuCategory: MenuCategory{Category: "items", Group: "itemGroup.name.record"},
			},
			Components: ItemComponents{
				Icon:         IconComponent{Texture: atlasKey(r)},
				DisplayName:  DisplayNameComponent{Value: r.Name},
				MaxStackSize: 1,
				Record: RecordComponent{
					SoundEvent:       r.SoundEvent,
					Duration:         r.DurationSeconds,
					ComparatorSignal: 1,
				},
				Tags: TagsComponent{Tags: []string{"minecraft:music_disc"}},
			},
		},
	}
}

func newItemTextureAtlas(packName string, recs []catalogs.Record) ItemTextureAtlas {
	data := make(map[string]TextureEntry, len(recs))
	for _, r := range recs {
		data[atlasKey(r)] = TextureEntry{Textures: "textures/items/" + atlasKey(r)}
	}
	return ItemTextureAtlas{ResourcePackName: packName, TextureName: atlasName, TextureData: data}
}

// PackVersion is the header and module version written to every manifest.
var PackVersion = [3]int{1, 0, 0}

func newManifest(name, description string, minEngine [3]int, headerUUID, moduleUUID string) Manifest {
	return Manifest{
		FormatVersion: manifestFormat,
		Header: ManifestHeader{
			Name:             name,
			Description:      description,
			UUID:             headerUUID,
			Version:          PackVersion,
			MinEngineVersion: minEngine,
		},
		Modules: []ManifestModule{{
			Type:    "resources",
			UUID:    moduleUUID,
			Version: PackVersion,
		}},
	}
}
