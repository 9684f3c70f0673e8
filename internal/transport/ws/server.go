package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/HBIDamian/CustomJukebox/internal/protocol"
	"github.com/HBIDamian/CustomJukebox/internal/sim/geom"
	"github.com/HBIDamian/CustomJukebox/internal/sim/world"
)

// Host is the part of the world a session talks to. Done is closed when the
// host stops reading its channels.
type Host interface {
	Join() chan<- world.JoinRequest
	Leave() chan<- string
	Inbox() chan<- world.ActionEnvelope
	Done() <-chan struct{}
}

type Server struct {
	host Host
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(h Host, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		host: h,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		occupantID, out := s.handshake(ctx, conn)
		if occupantID == "" {
			return
		}

		// Writer goroutine. It also unblocks the reader once the host stops.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-s.host.Done():
					closeGoingAway(conn)
					_ = conn.Close()
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			act, code, err := DecodeAction(msg)
			if err != nil {
				b, _ := json.Marshal(protocol.NewError(code, err.Error()))
				select {
				case out <- b:
				default:
				}
				continue
			}
			env := world.ActionEnvelope{OccupantID: occupantID, Action: act}
			select {
			case s.host.Inbox() <- env:
				continue
			case <-ctx.Done():
			case <-s.host.Done():
				closeGoingAway(conn)
			}
			cancel()
			break
		}

		// Cleanup. ctx is already cancelled here; only a stopped host may
		// skip the leave.
		select {
		case s.host.Leave() <- occupantID:
		case <-s.host.Done():
		}
		s.log.Printf("session %s closed", occupantID)
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (occupantID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 32
	}
	if maxQ > 256 {
		maxQ = 256
	}
	out = make(chan []byte, maxQ)

	respCh := make(chan world.JoinResponse, 1)
	select {
	case s.host.Join() <- world.JoinRequest{Name: hello.Name, Out: out, Resp: respCh}:
	case <-ctx.Done():
		return "", nil
	case <-s.host.Done():
		closeGoingAway(conn)
		return "", nil
	}
	// Once the join is queued the host answers within a tick; waiting on ctx
	// here would leave an occupant behind with nobody reading its queue.
	var resp world.JoinResponse
	select {
	case resp = <-respCh:
	case <-s.host.Done():
		closeGoingAway(conn)
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		return "", nil
	}
	s.log.Printf("session %s joined as %q", resp.Welcome.OccupantID, hello.Name)
	return resp.Welcome.OccupantID, out
}

// DecodeAction turns one client frame into a world action. On failure it also
// returns the protocol error code to report.
func DecodeAction(msg []byte) (world.Action, string, error) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return world.Action{}, protocol.ErrProtoBadRequest, fmt.Errorf("bad json: %w", err)
	}
	if base.ProtocolVersion != protocol.Version {
		return world.Action{}, protocol.ErrProtoBadRequest, fmt.Errorf("bad protocol_version %q", base.ProtocolVersion)
	}
	if !protocol.IsAction(base.Type) {
		return world.Action{}, protocol.ErrBadRequest, fmt.Errorf("unexpected message %q", base.Type)
	}

	switch base.Type {
	case protocol.TypeMove:
		var m protocol.MoveMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return world.Action{}, protocol.ErrBadRequest, err
		}
		return world.Action{Type: m.Type, Pos: geom.Vec3FromArray(m.Pos)}, "", nil
	case protocol.TypeHold:
		var m protocol.HoldMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return world.Action{}, protocol.ErrBadRequest, err
		}
		return world.Action{Type: m.Type, ItemID: m.ItemID, Count: m.Count}, "", nil
	case protocol.TypeInteract:
		var m protocol.InteractMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return world.Action{}, protocol.ErrBadRequest, err
		}
		return world.Action{Type: m.Type, Block: geom.BlockPosFromArray(m.Pos)}, "", nil
	default:
		var m protocol.BreakMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return world.Action{}, protocol.ErrBadRequest, err
		}
		return world.Action{Type: m.Type, Block: geom.BlockPosFromArray(m.Pos)}, "", nil
	}
}

func closeGoingAway(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "world stopped"), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
