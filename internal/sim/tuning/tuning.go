package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ItemNamespace          string `yaml:"item_namespace"`
	SoundNamespace         string `yaml:"sound_namespace"`
	ItemIDMode             string `yaml:"item_id_mode"` // "index" | "hash"
	DefaultDurationSeconds int    `yaml:"default_duration_seconds"`

	TickRateHz    int     `yaml:"tick_rate_hz"`
	HearingRadius float64 `yaml:"hearing_radius"`
	PlayVolume    float64 `yaml:"play_volume"`
	PlayPitch     float64 `yaml:"play_pitch"`

	AudioDir      string `yaml:"audio_dir"`
	StagingDir    string `yaml:"staging_dir"`
	ArtifactPath  string `yaml:"artifact_path"`
	PacksRequired bool   `yaml:"packs_required"`
	WatchAudioDir bool   `yaml:"watch_audio_dir"`

	Pack Pack `yaml:"pack"`

	Records []RecordEntry `yaml:"records"`
}

type Pack struct {
	Name             string `yaml:"name"`
	Description      string `yaml:"description"`
	MinEngineVersion []int  `yaml:"min_engine_version"`
	Icon             string `yaml:"icon"`
}

// RecordEntry is one raw record as written by the operator. Fields are
// normalized by catalogs.Load.
type RecordEntry struct {
	Name   string   `yaml:"name"`
	File   string   `yaml:"file"`
	Length int      `yaml:"length"`
	Lore   []string `yaml:"lore"`
}

func Defaults() Tuning {
	return Tuning{
		ItemNamespace:          "customjukebox",
		SoundNamespace:         "customjukebox",
		ItemIDMode:             "index",
		DefaultDurationSeconds: 120,
		TickRateHz:             20,
		HearingRadius:          16,
		PlayVolume:             1.0,
		PlayPitch:              1.0,
		AudioDir:               "./audio",
		StagingDir:             "./data/pack",
		ArtifactPath:           "./data/customjukebox.mcpack",
		PacksRequired:          true,
		Pack: Pack{
			Name:             "CustomJukebox",
			Description:      "Custom music discs",
			MinEngineVersion: []int{1, 20, 0},
		},
	}
}

// Load reads path and overlays it onto Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if strings.TrimSpace(t.ItemNamespace) == "" {
		return fmt.Errorf("item_namespace must not be empty")
	}
	if strings.TrimSpace(t.SoundNamespace) == "" {
		return fmt.Errorf("sound_namespace must not be empty")
	}
	switch t.ItemIDMode {
	case "index", "hash":
	default:
		return fmt.Errorf("item_id_mode %q: want index or hash", t.ItemIDMode)
	}
	if t.DefaultDurationSeconds < 1 {
		return fmt.Errorf("default_duration_seconds must be >= 1")
	}
	if t.TickRateHz < 1 || t.TickRateHz > 100 {
		return fmt.Errorf("tick_rate_hz out of range: %d", t.TickRateHz)
	}
	if t.HearingRadius <= 0 {
		return fmt.Errorf("hearing_radius must be > 0")
	}
	if len(t.Pack.MinEngineVersion) != 3 {
		return fmt.Errorf("pack.min_engine_version must have 3 components")
	}
	return CheckLayout(t.AudioDir, t.StagingDir, t.ArtifactPath)
}
