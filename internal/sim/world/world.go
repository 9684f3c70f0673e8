package world

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HBIDamian/CustomJukebox/internal/protocol"
	"github.com/HBIDamian/CustomJukebox/internal/sim/catalogs"
	"github.com/HBIDamian/CustomJukebox/internal/sim/geom"
	"github.com/HBIDamian/CustomJukebox/internal/sim/jukebox"
	"github.com/HBIDamian/CustomJukebox/internal/sim/sound"
)

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

// Action is one decoded client message. Pos is used by MOVE, Block by
// INTERACT and BREAK, ItemID and Count by HOLD.
type Action struct {
	Type   string
	Pos    geom.Vec3
	Block  geom.BlockPos
	ItemID string
	Count  int
}

type ActionEnvelope struct {
	OccupantID string
	Action     Action
}

// Reload replaces the catalog after a rebuild. Pack is advertised to occupants
// that join afterwards; nil keeps the current one.
type Reload struct {
	Catalog *catalogs.Catalog
	Pack    *protocol.PackRef
}

type Occupant struct {
	ID   string
	Name string
	Pos  geom.Vec3
	Held *Item

	out chan []byte
}

// World hosts jukeboxes for one level. It is single-threaded: all state except
// the atomic counters and the registry is owned by the loop goroutine.
type World struct {
	cfg     WorldConfig
	catalog *catalogs.Catalog
	pack    *protocol.PackRef

	tick atomic.Uint64

	occupants map[string]*Occupant
	entities  map[string]*ItemEntity

	sched    *tickScheduler
	registry *jukebox.Registry

	inbox  chan ActionEnvelope
	join   chan JoinRequest
	leave  chan string
	reload chan Reload
	stop   chan struct{}

	done     chan struct{}
	doneOnce sync.Once

	nextOccupantNum uint64
	nextEntityNum   uint64

	occupantCount atomic.Int64
	catalogSize   atomic.Int64

	log         *log.Logger
	auditLogger AuditLogger
}

func New(cfg WorldConfig, cat *catalogs.Catalog) (*World, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("world: missing id")
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 20
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}

	w := &World{
		cfg:       cfg,
		catalog:   cat,
		pack:      cfg.Pack,
		occupants: map[string]*Occupant{},
		entities:  map[string]*ItemEntity{},
		inbox:     make(chan ActionEnvelope, 1024),
		join:      make(chan JoinRequest, 64),
		leave:     make(chan string, 64),
		reload:    make(chan Reload, 4),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		log:       cfg.Logger,
	}
	w.sched = newTickScheduler(w.tick.Load)
	bc := sound.NewBroadcaster(w, w, cfg.Sound)
	w.registry = jukebox.NewRegistry(cat, w.sched, bc, jukebox.Config{
		TickRateHz:  cfg.TickRateHz,
		Logger:      cfg.RegistryLogger,
		OnAutoEject: w.onAutoEject,
	})
	w.catalogSize.Store(int64(cat.Len()))
	return w, nil
}

func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }
func (w *World) Reload() chan<- Reload        { return w.reload }

// Done is closed once Run has returned. Nothing reads the request channels
// after that.
func (w *World) Done() <-chan struct{} { return w.done }

func (w *World) ID() string                  { return w.cfg.ID }
func (w *World) CurrentTick() uint64         { return w.tick.Load() }
func (w *World) OccupantCount() int          { return int(w.occupantCount.Load()) }
func (w *World) CatalogSize() int            { return int(w.catalogSize.Load()) }
func (w *World) Registry() *jukebox.Registry { return w.registry }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer w.doneOnce.Do(func() { close(w.done) })

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case r := <-w.reload:
			w.applyReload(r)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// Shutdown stops every playing jukebox. Call it after Run has returned.
func (w *World) Shutdown() int {
	return len(w.registry.Clear())
}

// StepOnce advances the world by a single tick using the same ordering
// semantics as the loop. Tests and tools drive the world through it.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) uint64 {
	tick := w.tick.Load()
	w.step(joins, leaves, actions)
	return tick
}

// ApplyReload is Reload for callers that drive the world with StepOnce.
func (w *World) ApplyReload(r Reload) { w.applyReload(r) }

func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	nowTick := w.tick.Load()

	for _, id := range leaves {
		w.handleLeave(id)
	}
	for _, req := range joins {
		resp := w.joinOccupant(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
	}

	// Timers first so an auto-eject due this tick wins over an INTERACT
	// arriving in the same tick.
	w.sched.runDue(nowTick)

	for _, env := range actions {
		o := w.occupants[env.OccupantID]
		if o == nil {
			continue
		}
		w.applyAction(o, env.Action, nowTick)
	}

	w.tick.Add(1)
}

func (w *World) joinOccupant(name string, out chan []byte) JoinResponse {
	if name == "" {
		name = "player"
	}
	w.nextOccupantNum++
	id := fmt.Sprintf("P%d", w.nextOccupantNum)
	w.occupants[id] = &Occupant{ID: id, Name: name, Pos: w.cfg.Spawn, out: out}
	w.occupantCount.Store(int64(len(w.occupants)))
	w.log.Printf("join %s (%s)", id, name)
	return JoinResponse{Welcome: w.welcome(id)}
}

func (w *World) welcome(id string) protocol.WelcomeMsg {
	recs := w.catalog.Records()
	infos := make([]protocol.RecordInfo, 0, len(recs))
	for _, r := range recs {
		infos = append(infos, protocol.RecordInfo{
			ItemID:          r.ItemID,
			Name:            r.Name,
			SoundEvent:      r.SoundEvent,
			DurationSeconds: r.DurationSeconds,
		})
	}
	var pack *protocol.PackRef
	if w.pack != nil {
		p := *w.pack
		pack = &p
	}
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		OccupantID:      id,
		WorldID:         w.cfg.ID,
		TickRateHz:      w.cfg.TickRateHz,
		Pack:            pack,
		Records:         infos,
	}
}

func (w *World) handleLeave(id string) {
	if _, ok := w.occupants[id]; !ok {
		return
	}
	delete(w.occupants, id)
	w.occupantCount.Store(int64(len(w.occupants)))
	w.log.Printf("leave %s", id)
}

func (w *World) applyReload(r Reload) {
	if r.Catalog != nil {
		w.catalog = r.Catalog
		w.registry.SetCatalog(r.Catalog)
		w.catalogSize.Store(int64(r.Catalog.Len()))
	}
	if r.Pack != nil {
		p := *r.Pack
		w.pack = &p
	}
	w.log.Printf("catalog reloaded: %d records", w.catalog.Len())
}

// Occupant returns a copy of an occupant's state.
func (w *World) Occupant(id string) (Occupant, bool) {
	o, ok := w.occupants[id]
	if !ok {
		return Occupant{}, false
	}
	cp := *o
	if o.Held != nil {
		h := *o.Held
		cp.Held = &h
	}
	cp.out = nil
	return cp, true
}

// ItemEntities lists dropped items in spawn order.
func (w *World) ItemEntities() []ItemEntity {
	out := make([]ItemEntity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SpawnTick != out[j].SpawnTick {
			return out[i].SpawnTick < out[j].SpawnTick
		}
		return out[i].EntityID < out[j].EntityID
	})
	return out
}

// Listeners implements sound.Occupants.
func (w *World) Listeners(world string) []sound.Listener {
	if world != w.cfg.ID {
		return nil
	}
	ids := make([]string, 0, len(w.occupants))
	for id := range w.occupants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]sound.Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, sound.Listener{ID: id, Pos: w.occupants[id].Pos})
	}
	return out
}

// Send implements sound.Transport.
func (w *World) Send(listenerID string, sig sound.Signal) {
	w.sendTo(listenerID, protocol.PlaySoundMsg{
		Type:            protocol.TypePlaySound,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
		Sound:           sig.Sound,
		Pos:             sig.Pos.ToArray(),
		Volume:          sig.Volume,
		Pitch:           sig.Pitch,
	})
}

func (w *World) sendTo(id string, v any) {
	o := w.occupants[id]
	if o == nil || o.out == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	sendLatest(o.out, b)
}

func (w *World) broadcast(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	for _, o := range w.occupants {
		if o.out != nil {
			sendLatest(o.out, b)
		}
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
