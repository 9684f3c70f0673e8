package world

import (
	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/jukebox"
)

// Audit actions.
const (
	AuditInsert    = "INSERT"
	AuditEject     = "EJECT"
	AuditAutoEject = "AUTO_EJECT"
	AuditDestroy   = "DESTROY"
)

// ActorSystem is the actor recorded for timer-driven transitions.
const ActorSystem = "SYSTEM"

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type AuditEntry struct {
	Tick       uint64 `json:"tick"`
	Actor      string `json:"actor"`
	Action     string `json:"action"`
	World      string `json:"world"`
	Pos        [3]int `json:"pos"`
	SoundEvent string `json:"sound_event"`
	ItemID     string `json:"item_id"`
}

func (w *World) audit(tick uint64, actor, action string, key jukebox.SlotKey, rec catalogs.Record) {
	if w.auditLogger == nil {
		return
	}
	err := w.auditLogger.WriteAudit(AuditEntry{
		Tick:       tick,
		Actor:      actor,
		Action:     action,
		World:      key.World,
		Pos:        key.Pos().ToArray(),
		SoundEvent: rec.SoundEvent,
		ItemID:     rec.ItemID,
	})
	if err != nil {
		w.log.Printf("warn: audit %s %s: %v", action, key, err)
	}
}
