package world

import (
	"errors"
	"fmt"

	"github.com/HBIDamian/CustomJukebox/internal/protocol"
	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/geom"
	"github.com/HBIDamian/CustomJukebox/internal/sim/jukebox"
)

func (w *World) applyAction(o *Occupant, act Action, nowTick uint64) {
	switch act.Type {
	case protocol.TypeMove:
		o.Pos = act.Pos
	case protocol.TypeHold:
		w.applyHold(o, act, nowTick)
	case protocol.TypeInteract:
		w.applyInteract(o, act.Block, nowTick)
	case protocol.TypeBreak:
		w.applyBreak(o, act.Block, nowTick)
	default:
		w.sendTo(o.ID, protocol.NewError(protocol.ErrBadRequest, fmt.Sprintf("unknown action %q", act.Type)))
	}
}

func (w *World) applyHold(o *Occupant, act Action, nowTick uint64) {
	if act.ItemID == "" {
		o.Held = nil
		w.sendHeld(o, nowTick)
		return
	}
	rec, ok := w.catalog.ByItemID(act.ItemID)
	if !ok {
		w.sendTo(o.ID, protocol.NewError(protocol.ErrUnknownRecord, act.ItemID))
		return
	}
	count := act.Count
	if count > maxStack {
		count = maxStack
	}
	it := DiscItem(rec, count)
	o.Held = &it
	w.sendHeld(o, nowTick)
}

// applyInteract is the use-on-jukebox handler: a playing slot ejects, an idle
// slot accepts the held disc. Anything else is left to the host.
func (w *World) applyInteract(o *Occupant, block geom.BlockPos, nowTick uint64) {
	key := jukebox.KeyAt(w.cfg.ID, block)

	if w.registry.Playing(key) {
		ej := w.registry.Eject(key)
		if ej.Outcome == jukebox.Ejected {
			w.dropDisc(ej.Record, ej.Pos, nowTick)
			w.audit(nowTick, o.ID, AuditEject, key, ej.Record)
		}
		return
	}

	if o.Held == nil {
		return
	}
	itemID, ok := o.Held.RecordItemID()
	if !ok {
		return
	}
	rec, err := w.registry.Resolve(itemID)
	if err != nil {
		if errors.Is(err, jukebox.ErrUnknownRecord) {
			w.log.Printf("warn: %s inserted unknown disc %s at %s", o.ID, itemID, key)
			w.sendTo(o.ID, protocol.NewError(protocol.ErrUnknownRecord, itemID))
		}
		return
	}

	switch w.registry.Insert(key, rec, block.Center()) {
	case jukebox.Started:
		o.Held.Count--
		if o.Held.Count <= 0 {
			o.Held = nil
		}
		w.sendHeld(o, nowTick)
		w.audit(nowTick, o.ID, AuditInsert, key, rec)
	case jukebox.UnknownRecord:
		w.sendTo(o.ID, protocol.NewError(protocol.ErrUnknownRecord, itemID))
	case jukebox.AlreadyOccupied:
		w.sendTo(o.ID, protocol.NewError(protocol.ErrInvalidTarget, "jukebox is playing"))
	}
}

func (w *World) applyBreak(o *Occupant, block geom.BlockPos, nowTick uint64) {
	key := jukebox.KeyAt(w.cfg.ID, block)
	ej := w.registry.DestroySlot(key)
	if ej.Outcome != jukebox.Ejected {
		return
	}
	w.dropDisc(ej.Record, ej.Pos, nowTick)
	w.audit(nowTick, o.ID, AuditDestroy, key, ej.Record)
}

// onAutoEject runs inside a scheduler callback on the world goroutine.
func (w *World) onAutoEject(key jukebox.SlotKey, ej jukebox.Ejection) {
	nowTick := w.tick.Load()
	w.dropDisc(ej.Record, ej.Pos, nowTick)
	w.audit(nowTick, ActorSystem, AuditAutoEject, key, ej.Record)
}

func (w *World) dropDisc(rec catalogs.Record, pos geom.Vec3, nowTick uint64) {
	w.spawnItem(DiscItem(rec, 1), pos, nowTick)
}

func (w *World) spawnItem(it Item, pos geom.Vec3, nowTick uint64) *ItemEntity {
	w.nextEntityNum++
	e := &ItemEntity{
		EntityID:  fmt.Sprintf("E%d", w.nextEntityNum),
		Pos:       pos,
		Item:      it,
		SpawnTick: nowTick,
	}
	w.entities[e.EntityID] = e
	if w.cfg.ItemDespawnTicks > 0 {
		id := e.EntityID
		w.sched.AfterTicks(w.cfg.ItemDespawnTicks, func() { delete(w.entities, id) })
	}
	w.broadcast(protocol.ItemDropMsg{
		Type:            protocol.TypeItemDrop,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		EntityID:        e.EntityID,
		Pos:             pos.ToArray(),
		Item:            it.ref(),
	})
	return e
}

func (w *World) sendHeld(o *Occupant, nowTick uint64) {
	msg := protocol.HeldMsg{Type: protocol.TypeHeld, ProtocolVersion: protocol.Version, Tick: nowTick}
	if o.Held != nil {
		ref := o.Held.ref()
		msg.Item = &ref
	}
	w.sendTo(o.ID, msg)
}
