package cot

import (
	"testing"
	"time"

	"github.com/valpatel/tritium-sc/engine-core/eventbus"
	"github.com/valpatel/tritium-sc/engine-core/tracker"
)

func newTestBridge() (*Bridge, *eventbus.Bus, *tracker.Tracker) {
	bus := eventbus.New(nil)
	trk := tracker.New(nil)
	b := NewBridge(Config{Addr: "127.0.0.1:0", Callsign: "TRITIUM"}, bus, trk, nil)
	return b, bus, trk
}

func TestInboundGeoChatRecordedAndEmitted(t *testing.T) {
	b, bus, _ := newTestBridge()
	sub := bus.Subscribe("geochat_received", 0)
	defer sub.Close()

	ev := BuildGeoChat(ChatMessage{
		SenderUID:      "Alpha",
		SenderCallsign: "Alpha",
		Message:        "enemy sighted at the bridge",
		Lat:            37.7,
		Lng:            -122.4,
	}, time.Now(), 60)
	b.handleGeoChat(ev)

	msgs := b.Chat().Messages()
	if len(msgs) != 1 {
		t.Fatalf("chat history has %d messages, want 1", len(msgs))
	}
	if msgs[0].Direction != "inbound" || msgs[0].SenderCallsign != "Alpha" {
		t.Fatalf("history entry = %+v", msgs[0])
	}

	select {
	case got := <-sub.Events():
		payload := got.Payload.(map[string]any)
		if payload["sender_callsign"] != "Alpha" || payload["message"] != "enemy sighted at the bridge" {
			t.Fatalf("geochat_received payload = %+v", payload)
		}
	default:
		t.Fatal("geochat_received not published")
	}
}

func TestInboundSAEventFeedsTrackerWithPrefix(t *testing.T) {
	b, _, trk := newTestBridge()
	ev := BuildTargetEvent(roverView(), testRef, time.Now(), 60)
	ev.UID = "peer-unit-1"
	b.handleInbound(ev)

	rec, ok := trk.GetTarget(tracker.PrefixTAK + "peer-unit-1")
	if !ok {
		t.Fatal("inbound SA event not in tracker under tak_ prefix")
	}
	if rec.Source != "tak" {
		t.Fatalf("record source = %q", rec.Source)
	}
}

func TestOwnReflectionNotReIngested(t *testing.T) {
	b, _, trk := newTestBridge()
	b.mu.Lock()
	b.lastState["rover-1"] = roverView()
	b.mu.Unlock()

	ev := BuildTargetEvent(roverView(), testRef, time.Now(), 60)
	b.handleInbound(ev)

	if _, ok := trk.GetTarget(tracker.PrefixTAK + "rover-1"); ok {
		t.Fatal("our own reflected SA event was re-ingested")
	}
}

func TestOutboundChatLandsInHistory(t *testing.T) {
	b, _, _ := newTestBridge()
	// Not connected: the send fails, but the history entry is recorded
	// first so operators see what they said.
	_ = b.SendChat("hold positions", "")
	msgs := b.Chat().Messages()
	if len(msgs) != 1 || msgs[0].Direction != "outbound" {
		t.Fatalf("history = %+v", msgs)
	}
}

func TestFinalStaleSentOncePerTarget(t *testing.T) {
	b, _, _ := newTestBridge()
	if b.alreadyFinal("x") {
		t.Fatal("first check should report not-yet-final")
	}
	if !b.alreadyFinal("x") {
		t.Fatal("second check should report already-final")
	}
}
