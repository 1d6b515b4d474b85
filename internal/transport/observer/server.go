// Package observer serves a live websocket feed of round events to spectators.
package observer

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"metaleague.ai/internal/protocol"
	"metaleague.ai/internal/sim/match"
)

const subscriberBuffer = 256

// Hub fans match events out to subscribers. Publishing never blocks: a subscriber whose buffer is
// full is disconnected.
type Hub struct {
	log *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	dropped  atomic.Uint64

	mu   sync.Mutex
	subs map[string]*subscriber
}

type subscriber struct {
	id      string
	matchID string
	out     chan []byte
	gone    chan struct{}
	once    sync.Once
}

func (s *subscriber) close() { s.once.Do(func() { close(s.gone) }) }

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		log:  logger,
		subs: map[string]*subscriber{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (h *Hub) logf(format string, args ...any) {
	if h.log != nil {
		h.log.Printf(format, args...)
	}
}

// Round publishes one round entry. Hub is a match.Sink.
func (h *Hub) Round(e match.RoundLogEntry) {
	entry, err := json.Marshal(e)
	if err != nil {
		return
	}
	b, _ := json.Marshal(protocol.RoundMsg{
		Type:            protocol.TypeRound,
		ProtocolVersion: protocol.Version,
		MatchID:         e.MatchID,
		Round:           e.Round,
		Entry:           entry,
	})
	h.publish(e.MatchID, b)
}

func (h *Hub) Result(r *match.MatchResult) {
	if r == nil {
		return
	}
	res, err := json.Marshal(r)
	if err != nil {
		return
	}
	b, _ := json.Marshal(protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		MatchID:         r.MatchID,
		Result:          res,
	})
	h.publish(r.MatchID, b)
}

// Failure tells subscribers a match could not be played.
func (h *Hub) Failure(matchID string, err error) {
	msg := protocol.NewError(protocol.ErrMatchFailed, err.Error())
	msg.MatchID = matchID
	b, _ := json.Marshal(msg)
	h.publish(matchID, b)
}

func (h *Hub) publish(matchID string, b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		if s.matchID != "" && s.matchID != matchID {
			continue
		}
		select {
		case s.out <- b:
		default:
			delete(h.subs, id)
			s.close()
			h.dropped.Add(1)
			h.logf("observer %s dropped: slow consumer", id)
		}
	}
}

func (h *Hub) add(matchID string, buffer int) *subscriber {
	s := &subscriber{
		id:      fmt.Sprintf("O%d", h.nextID.Add(1)),
		matchID: matchID,
		out:     make(chan []byte, buffer),
		gone:    make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()
	return s
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s.id)
	h.mu.Unlock()
	s.close()
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub protocol.SubscribeMsg
		if err := json.Unmarshal(msg, &sub); err != nil || sub.Type != protocol.TypeSubscribe {
			reject(conn, protocol.ErrProtoBadRequest, "expected SUBSCRIBE")
			return
		}
		if sub.ProtocolVersion != protocol.Version {
			reject(conn, protocol.ErrProtoVersion, "unsupported protocol_version")
			return
		}

		s := h.add(sub.MatchID, subscriberBuffer)
		defer h.remove(s)

		ack, _ := json.Marshal(protocol.SubscribedMsg{
			Type:            protocol.TypeSubscribed,
			ProtocolVersion: protocol.Version,
			MatchID:         sub.MatchID,
			SubscriberID:    s.id,
		})
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, ack); err != nil {
			return
		}

		// Reader goroutine: spectators only send close frames; any read error ends the session.
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-readDone:
				return
			case <-s.gone:
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "slow consumer"), time.Now().Add(time.Second))
				return
			case b := <-s.out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}
}

func reject(conn *websocket.Conn, code, message string) {
	b, _ := json.Marshal(protocol.NewError(code, message))
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = conn.WriteMessage(websocket.TextMessage, b)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, message), time.Now().Add(time.Second))
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
