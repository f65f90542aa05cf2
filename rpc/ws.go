package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"credchain/core/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	feedBuffer     = 64
)

// EventFeed fans emitted registry events out to websocket subscribers. It
// satisfies events.Emitter, so it can be wired directly into the ledger,
// registry and vesting engine. Slow subscribers are dropped rather than
// allowed to block the emitting operation.
type EventFeed struct {
	mu   sync.Mutex
	subs map[chan events.Event]struct{}
}

// NewEventFeed creates an empty feed.
func NewEventFeed() *EventFeed {
	return &EventFeed{subs: make(map[chan events.Event]struct{})}
}

// Emit implements events.Emitter.
func (f *EventFeed) Emit(evt events.Event) {
	if f == nil || evt == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- evt:
		default:
			delete(f.subs, ch)
			close(ch)
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel function must be
// called when the subscriber goes away.
func (f *EventFeed) Subscribe() (<-chan events.Event, func()) {
	ch := make(chan events.Event, feedBuffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subs[ch]; ok {
			delete(f.subs, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

type wsEventPayload struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func eventPayload(evt events.Event) wsEventPayload {
	payload := wsEventPayload{Type: evt.EventType(), Attributes: map[string]string{}}
	switch e := evt.(type) {
	case events.CredentialMinted:
		payload.Attributes["owner"] = encodeAddr(e.Owner)
		payload.Attributes["tokenId"] = strconv.FormatUint(e.TokenID, 10)
	case events.CredentialBurned:
		payload.Attributes["caller"] = encodeAddr(e.Caller)
		payload.Attributes["tokenId"] = strconv.FormatUint(e.TokenID, 10)
	case events.CredentialVested:
		payload.Attributes["caller"] = encodeAddr(e.Caller)
		payload.Attributes["tokenId"] = strconv.FormatUint(e.TokenID, 10)
		amount := "0"
		if e.Amount != nil {
			amount = e.Amount.String()
		}
		payload.Attributes["amount"] = amount
	case events.CredentialApproved:
		payload.Attributes["owner"] = encodeAddr(e.Owner)
		payload.Attributes["approved"] = encodeAddr(e.Approved)
		payload.Attributes["tokenId"] = strconv.FormatUint(e.TokenID, 10)
	case events.CredentialTransferred:
		payload.Attributes["from"] = encodeAddr(e.From)
		payload.Attributes["to"] = encodeAddr(e.To)
		payload.Attributes["tokenId"] = strconv.FormatUint(e.TokenID, 10)
	case events.VestingScheduled:
		payload.Attributes["caller"] = encodeAddr(e.Caller)
		payload.Attributes["tokenId"] = strconv.FormatUint(e.TokenID, 10)
		payload.Attributes["deadline"] = strconv.FormatUint(e.Deadline, 10)
	case events.TransferabilityUpdated:
		payload.Attributes["caller"] = encodeAddr(e.Caller)
		payload.Attributes["enabled"] = strconv.FormatBool(e.Enabled)
	case events.AdminRotated:
		payload.Attributes["previous"] = encodeAddr(e.Previous)
		payload.Attributes["next"] = encodeAddr(e.Next)
	case events.ModulePauseUpdated:
		payload.Attributes["caller"] = encodeAddr(e.Caller)
		payload.Attributes["module"] = e.Module
		payload.Attributes["paused"] = strconv.FormatBool(e.Paused)
	}
	return payload
}

func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		http.Error(w, "event feed unavailable", http.StatusServiceUnavailable)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	if err := s.streamEvents(r.Context(), conn); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamEvents(ctx context.Context, conn *websocket.Conn) error {
	updates, cancel := s.feed.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt events.Event) error {
	data, err := json.Marshal(eventPayload(evt))
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
