package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"metaleague.ai/internal/protocol"
	"metaleague.ai/internal/sim/match"
	"metaleague.ai/schemas"
)

func main() {
	var (
		url      = flag.String("url", "ws://127.0.0.1:8081/v1/observe", "observer ws url")
		matchID  = flag.String("match", "", "follow one match id (default: every match)")
		validate = flag.Bool("validate", false, "validate every round entry against the published schema")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)

	var check func([]byte) error
	if *validate {
		sch, err := schemas.Compile(schemas.RoundEvent)
		if err != nil {
			logger.Fatalf("schema: %v", err)
		}
		check = func(raw []byte) error {
			var v any
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.UseNumber()
			if err := dec.Decode(&v); err != nil {
				return err
			}
			return sch.Validate(v)
		}
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := protocol.SubscribeMsg{
		Type:            protocol.TypeSubscribe,
		ProtocolVersion: protocol.Version,
		MatchID:         *matchID,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeSubscribed:
			var s protocol.SubscribedMsg
			if err := json.Unmarshal(msg, &s); err != nil {
				continue
			}
			logger.Printf("SUBSCRIBED subscriber_id=%s match=%q", s.SubscriberID, s.MatchID)

		case protocol.TypeRound:
			var rm protocol.RoundMsg
			if err := json.Unmarshal(msg, &rm); err != nil {
				continue
			}
			if check != nil {
				if err := check(rm.Entry); err != nil {
					logger.Printf("match=%s round=%d invalid entry: %v", rm.MatchID, rm.Round, err)
				}
			}
			var e match.RoundLogEntry
			if err := json.Unmarshal(rm.Entry, &e); err != nil {
				continue
			}
			logger.Printf("match=%s round=%d first=%s moves=%d convergences=%d subs=%d",
				e.MatchID, e.Round, e.First, len(e.Moves), len(e.Convergences), len(e.Substitutions))

		case protocol.TypeResult:
			var res protocol.ResultMsg
			if err := json.Unmarshal(msg, &res); err != nil {
				continue
			}
			var r match.MatchResult
			if err := json.Unmarshal(res.Result, &r); err != nil {
				continue
			}
			logger.Printf("RESULT match=%s %s %d-%d %s winner=%s reason=%s",
				r.MatchID, r.TeamAID, r.TeamAWins, r.TeamBWins, r.TeamBID, r.Winner, r.EndReason)
			if *matchID != "" && r.MatchID == *matchID {
				return
			}

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				continue
			}
			logger.Printf("ERROR code=%s match=%s: %s", e.Code, e.MatchID, e.Message)
			if e.MatchID == "" {
				return
			}
		}
	}
}
