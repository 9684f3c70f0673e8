package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	OccupantID      string       `json:"occupant_id"`
	WorldID         string       `json:"world_id"`
	TickRateHz      int          `json:"tick_rate_hz"`
	Pack            *PackRef     `json:"pack,omitempty"`
	Records         []RecordInfo `json:"records"`
}

// PackRef tells a client which resource pack to fetch before it can hear
// custom records.
type PackRef struct {
	URL        string `json:"url"`
	SHA256     string `json:"sha256"`
	Size       int64  `json:"size"`
	HeaderUUID string `json:"header_uuid"`
	Version    [3]int `json:"version"`
	Required   bool   `json:"required"`
}

type RecordInfo struct {
	ItemID          string `json:"item_id"`
	Name            string `json:"name"`
	SoundEvent      string `json:"sound_event"`
	DurationSeconds int    `json:"duration_seconds"`
}

// ItemRef is a held or dropped item stack.
type ItemRef struct {
	ID          string            `json:"id"`
	Count       int               `json:"count"`
	DisplayName string            `json:"display_name,omitempty"`
	Lore        []string          `json:"lore,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// MOVE (client -> server)
type MoveMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Pos             [3]float64 `json:"pos"`
}

// HOLD (client -> server): pick a disc from the catalog into the hand. An
// empty item_id empties the hand.
type HoldMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ItemID          string `json:"item_id"`
	Count           int    `json:"count,omitempty"`
}

// INTERACT (client -> server): use the jukebox at pos.
type InteractMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Pos             [3]int `json:"pos"`
}

// BREAK (client -> server): destroy the jukebox at pos.
type BreakMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Pos             [3]int `json:"pos"`
}

// PLAY_SOUND (server -> client). Volume 0 stops the sound.
type PlaySoundMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	Sound           string     `json:"sound"`
	Pos             [3]float64 `json:"pos"`
	Volume          float64    `json:"volume"`
	Pitch           float64    `json:"pitch"`
}

// ITEM_DROP (server -> client)
type ItemDropMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Tick            uint64     `json:"tick"`
	EntityID        string     `json:"entity_id"`
	Pos             [3]float64 `json:"pos"`
	Item            ItemRef    `json:"item"`
}

// HELD (server -> client): the occupant's hand after a change. Item is nil
// when the hand is empty.
type HeldMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Tick            uint64   `json:"tick"`
	Item            *ItemRef `json:"item"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: message}
}
