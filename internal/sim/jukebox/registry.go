package jukebox

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/geom"
)

var ErrUnknownRecord = errors.New("jukebox: unknown record")

// SlotKey addresses one physical jukebox. It is a comparable value so it can
// key a map directly.
type SlotKey struct {
	World string
	X     int
	Y     int
	Z     int
}

func KeyAt(world string, p geom.BlockPos) SlotKey {
	return SlotKey{World: world, X: p.X, Y: p.Y, Z: p.Z}
}

func (k SlotKey) Pos() geom.BlockPos { return geom.BlockPos{X: k.X, Y: k.Y, Z: k.Z} }

func (k SlotKey) String() string { return fmt.Sprintf("%s@%d,%d,%d", k.World, k.X, k.Y, k.Z) }

// Timer is a handle to a scheduled callback. Stop must be idempotent.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn after the given number of ticks. AfterTicks is called
// with the registry lock held, so fn must never run synchronously inside it.
type Scheduler interface {
	AfterTicks(ticks uint64, fn func()) Timer
}

// Broadcaster is called with the registry lock held and must not call back
// into the registry.
type Broadcaster interface {
	Start(world string, pos geom.Vec3, sound string) int
	Stop(world string, sound string) int
}

type InsertOutcome int

const (
	Started InsertOutcome = iota + 1
	AlreadyOccupied
	UnknownRecord
)

func (o InsertOutcome) String() string {
	switch o {
	case Started:
		return "STARTED"
	case AlreadyOccupied:
		return "ALREADY_OCCUPIED"
	case UnknownRecord:
		return "UNKNOWN_RECORD"
	default:
		return "INVALID"
	}
}

type EjectOutcome int

const (
	Ejected EjectOutcome = iota + 1
	WasIdle
)

func (o EjectOutcome) String() string {
	switch o {
	case Ejected:
		return "EJECTED"
	case WasIdle:
		return "WAS_IDLE"
	default:
		return "INVALID"
	}
}

// Ejection is the result of eject, destroy or an auto-eject timer. Record and
// Pos are only set when Outcome is Ejected.
type Ejection struct {
	Outcome    EjectOutcome
	Record     catalogs.Record
	Pos        geom.Vec3
	Generation uint64
}

// AutoEjectFunc receives every ejection won by a timer, outside the registry
// lock. The caller materializes the dropped item.
type AutoEjectFunc func(key SlotKey, ej Ejection)

type Config struct {
	TickRateHz  int
	Logger      *log.Logger
	OnAutoEject AutoEjectFunc
}

type slot struct {
	record catalogs.Record
	pos    geom.Vec3
	gen    uint64
	timer  Timer
}

type SlotState struct {
	Key        SlotKey
	Record     catalogs.Record
	Pos        geom.Vec3
	Generation uint64
}

// Registry tracks which slot plays which record. A slot is either absent
// (idle) or present with exactly one live timer. Insert, Eject and timer
// firing for a key are each one critical section under mu.
type Registry struct {
	mu      sync.Mutex
	slots   map[SlotKey]*slot
	nextGen uint64
	catalog *catalogs.Catalog

	sched  Scheduler
	bc     Broadcaster
	rate   uint64
	log    *log.Logger
	onAuto AutoEjectFunc
}

func NewRegistry(cat *catalogs.Catalog, sched Scheduler, bc Broadcaster, cfg Config) *Registry {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 20
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	return &Registry{
		slots:   map[SlotKey]*slot{},
		catalog: cat,
		sched:   sched,
		bc:      bc,
		rate:    uint64(cfg.TickRateHz),
		log:     cfg.Logger,
		onAuto:  cfg.OnAutoEject,
	}
}

// SetCatalog swaps the catalog used to validate inserts. Slots already
// playing keep their record until ejected.
func (r *Registry) SetCatalog(cat *catalogs.Catalog) {
	r.mu.Lock()
	r.catalog = cat
	r.mu.Unlock()
}

// Resolve maps an item identifier carried on a held item to its record.
func (r *Registry) Resolve(itemID string) (catalogs.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.catalog.ByItemID(itemID)
	if !ok {
		return catalogs.Record{}, fmt.Errorf("%w: %s", ErrUnknownRecord, itemID)
	}
	return rec, nil
}

func (r *Registry) Playing(key SlotKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.slots[key]
	return ok
}

// DurationTicks is the auto-eject delay for a record, never below one second.
func (r *Registry) DurationTicks(rec catalogs.Record) uint64 {
	secs := rec.DurationSeconds
	if secs < 1 {
		secs = 1
	}
	return uint64(secs) * r.rate
}

// Insert starts rec on an idle slot. It never replaces a playing record.
func (r *Registry) Insert(key SlotKey, rec catalogs.Record, pos geom.Vec3) InsertOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slots[key]; ok {
		return AlreadyOccupied
	}
	known, ok := r.catalog.BySoundEvent(rec.SoundEvent)
	if !ok || known.ItemID != rec.ItemID {
		return UnknownRecord
	}

	r.nextGen++
	gen := r.nextGen
	s := &slot{record: known, pos: pos, gen: gen}
	r.slots[key] = s

	r.bc.Start(key.World, pos, known.SoundEvent)
	s.timer = r.sched.AfterTicks(r.DurationTicks(known), func() {
		ej := r.TimerFired(key, gen)
		if ej.Outcome == Ejected && r.onAuto != nil {
			r.onAuto(key, ej)
		}
	})
	r.log.Printf("slot %s: playing %s (gen=%d)", key, known.SoundEvent, gen)
	return Started
}

// Eject stops the slot and returns the record it held. An idle slot reports
// WasIdle and nothing is emitted.
func (r *Registry) Eject(key SlotKey) Ejection {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[key]
	if !ok {
		return Ejection{Outcome: WasIdle}
	}
	return r.ejectLocked(key, s)
}

// DestroySlot is Eject for a slot whose block was removed. The returned
// position is the slot's last known position.
func (r *Registry) DestroySlot(key SlotKey) Ejection {
	return r.Eject(key)
}

// TimerFired handles a matured auto-eject timer of generation gen. A timer
// whose slot was already ejected, or re-filled under a newer generation, is
// ignored and reports WasIdle.
func (r *Registry) TimerFired(key SlotKey, gen uint64) Ejection {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[key]
	if !ok || s.gen != gen {
		return Ejection{Outcome: WasIdle}
	}
	return r.ejectLocked(key, s)
}

func (r *Registry) ejectLocked(key SlotKey, s *slot) Ejection {
	if s.timer != nil {
		s.timer.Stop()
	}
	delete(r.slots, key)
	r.bc.Stop(key.World, s.record.SoundEvent)
	r.log.Printf("slot %s: stopped %s (gen=%d)", key, s.record.SoundEvent, s.gen)
	return Ejection{Outcome: Ejected, Record: s.record, Pos: s.pos, Generation: s.gen}
}

// Clear stops every slot. It is meant for shutdown; nothing is dropped.
func (r *Registry) Clear() []SlotState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.activeLocked()
	for _, st := range out {
		r.ejectLocked(st.Key, r.slots[st.Key])
	}
	return out
}

// Active returns the playing slots ordered by key.
func (r *Registry) Active() []SlotState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked()
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

func (r *Registry) activeLocked() []SlotState {
	out := make([]SlotState, 0, len(r.slots))
	for k, s := range r.slots {
		out = append(out, SlotState{Key: k, Record: s.record, Pos: s.pos, Generation: s.gen})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.World != b.World {
			return a.World < b.World
		}
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return out
}
