package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HBIDamian/CustomJukebox/internal/protocol"
)

// jsonWriter is the part of a websocket connection the bot writes through.
type jsonWriter interface {
	WriteJSON(v any) error
}

type bot struct {
	out    jsonWriter
	log    *log.Logger
	record string
	pos    [3]int

	// wander moves the bot around the jukebox so it drifts in and out of
	// hearing range. Zero disables it.
	wander int
	rng    *rand.Rand

	occupantID string
	inserted   bool
}

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "bot", "occupant name")
		record = flag.String("record", "", "item id of the disc to play (default: first record in WELCOME)")
		x      = flag.Int("x", 0, "jukebox x")
		y      = flag.Int("y", 64, "jukebox y")
		z      = flag.Int("z", 0, "jukebox z")
		wander = flag.Int("wander", 0, "wander up to this many blocks from the jukebox after inserting (0 = stay)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	b := &bot{
		out:    conn,
		log:    logger,
		record: *record,
		pos:    [3]int{*x, *y, *z},
		wander: *wander,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            *name,
		MaxQueue:        8,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		b.handle(msg)
	}
}

func (b *bot) handle(msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return
		}
		b.occupantID = w.OccupantID
		packSHA := ""
		if w.Pack != nil {
			packSHA = w.Pack.SHA256
		}
		b.log.Printf("WELCOME occupant=%s world=%s tick_rate=%d records=%d pack=%s", w.OccupantID, w.WorldID, w.TickRateHz, len(w.Records), packSHA)
		if b.record == "" && len(w.Records) > 0 {
			b.record = w.Records[0].ItemID
		}
		if b.record == "" {
			b.log.Printf("no records to play")
			return
		}
		b.send(protocol.HoldMsg{Type: protocol.TypeHold, ProtocolVersion: protocol.Version, ItemID: b.record, Count: 1})

	case protocol.TypeHeld:
		var h protocol.HeldMsg
		if err := json.Unmarshal(msg, &h); err != nil {
			return
		}
		if h.Item == nil {
			b.log.Printf("HELD nothing")
			return
		}
		b.log.Printf("HELD %s x%d", h.Item.ID, h.Item.Count)
		if !b.inserted && h.Item.ID == b.record {
			b.inserted = true
			b.send(protocol.InteractMsg{Type: protocol.TypeInteract, ProtocolVersion: protocol.Version, Pos: b.pos})
		}

	case protocol.TypePlaySound:
		var p protocol.PlaySoundMsg
		if err := json.Unmarshal(msg, &p); err != nil {
			return
		}
		if p.Volume == 0 {
			b.log.Printf("STOP %s tick=%d", p.Sound, p.Tick)
			return
		}
		b.log.Printf("PLAY %s tick=%d at %v", p.Sound, p.Tick, p.Pos)
		b.wanderStep()

	case protocol.TypeItemDrop:
		var d protocol.ItemDropMsg
		if err := json.Unmarshal(msg, &d); err != nil {
			return
		}
		b.log.Printf("ITEM_DROP %s %s at %v", d.EntityID, d.Item.ID, d.Pos)

	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			return
		}
		b.log.Printf("ERROR %s: %s", e.Code, e.Message)
	}
}

func (b *bot) wanderStep() {
	if b.wander <= 0 || b.rng == nil {
		return
	}
	dx := b.rng.Intn(2*b.wander+1) - b.wander
	dz := b.rng.Intn(2*b.wander+1) - b.wander
	b.send(protocol.MoveMsg{
		Type:            protocol.TypeMove,
		ProtocolVersion: protocol.Version,
		Pos:             [3]float64{float64(b.pos[0]+dx) + 0.5, float64(b.pos[1]), float64(b.pos[2]+dz) + 0.5},
	})
}

func (b *bot) send(v any) {
	if err := b.out.WriteJSON(v); err != nil {
		b.log.Printf("send: %v", err)
	}
}
