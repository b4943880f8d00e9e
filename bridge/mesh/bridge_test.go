package mesh

import (
	"strings"
	"testing"

	"github.com/valpatel/tritium-sc/engine-core/tracker"
)

type recorder struct {
	chunks []string
	fail   bool
}

func (r *recorder) SendText(chunk string) error {
	if r.fail {
		return errSend
	}
	r.chunks = append(r.chunks, chunk)
	return nil
}

var errSend = &sendErr{}

type sendErr struct{}

func (*sendErr) Error() string { return "radio gone" }

func TestShortMessageSendsUnsplit(t *testing.T) {
	rec := &recorder{}
	b := NewBridge(rec, tracker.New(nil), 200, nil)
	if err := b.SendText("all clear"); err != nil {
		t.Fatal(err)
	}
	if len(rec.chunks) != 1 || rec.chunks[0] != "all clear" {
		t.Fatalf("chunks = %q", rec.chunks)
	}
}

func TestLongMessageSplitsWithinLimit(t *testing.T) {
	rec := &recorder{}
	limit := 50
	b := NewBridge(rec, tracker.New(nil), limit, nil)
	msg := strings.Repeat("hostiles moving west of the river crossing ", 5)
	if err := b.SendText(msg); err != nil {
		t.Fatal(err)
	}
	if len(rec.chunks) < 2 {
		t.Fatalf("long message sent in %d chunks", len(rec.chunks))
	}
	for i, chunk := range rec.chunks {
		if len(chunk) > limit {
			t.Fatalf("chunk %d is %d bytes, over the %d limit", i, len(chunk), limit)
		}
		if !strings.HasPrefix(chunk, "(") {
			t.Fatalf("multi-part chunk %d missing part tag: %q", i, chunk)
		}
	}
	// Reassembled content survives modulo the collapsed split spaces.
	var rebuilt []string
	for _, chunk := range rec.chunks {
		rebuilt = append(rebuilt, chunk[strings.Index(chunk, ") ")+2:])
	}
	if joined := strings.Join(rebuilt, " "); strings.ReplaceAll(joined, " ", "") != strings.ReplaceAll(msg, " ", "") {
		t.Fatal("split lost message content")
	}
}

func TestSplitPrefersSpaceBoundaries(t *testing.T) {
	chunks := SplitText("alpha bravo charlie delta echo foxtrot", 20)
	for _, c := range chunks {
		if strings.HasPrefix(c, " ") || strings.HasSuffix(c, " ") {
			t.Fatalf("chunk %q not trimmed", c)
		}
	}
	for _, c := range chunks[:len(chunks)-1] {
		if i := strings.LastIndexByte(c, ' '); i < 0 && len(c) > 10 {
			t.Fatalf("chunk %q split mid-word despite spaces available", c)
		}
	}
}

func TestSendFailureSurfaces(t *testing.T) {
	b := NewBridge(&recorder{fail: true}, tracker.New(nil), 0, nil)
	if err := b.SendText("hello"); err == nil {
		t.Fatal("transport failure swallowed")
	}
}

func TestHandleNodeInfoFeedsTracker(t *testing.T) {
	trk := tracker.New(nil)
	b := NewBridge(&recorder{}, trk, 0, nil)
	payload := []byte(`{"node_id": "node-42", "name": "Hiker", "lat": 37.7751, "lng": -122.4192, "battery": 0.7}`)
	if err := b.HandleNodeInfo(payload); err != nil {
		t.Fatal(err)
	}
	rec, ok := trk.GetTarget(tracker.PrefixMQTT + "mesh-node-42")
	if !ok {
		t.Fatal("node not in tracker under mqtt_ prefix")
	}
	if rec.Name != "Hiker" || rec.Battery != 0.7 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestHandleNodeInfoRejectsGarbage(t *testing.T) {
	b := NewBridge(&recorder{}, tracker.New(nil), 0, nil)
	if err := b.HandleNodeInfo([]byte(`{}`)); err == nil {
		t.Fatal("node info without id accepted")
	}
	if err := b.HandleNodeInfo([]byte(`nope`)); err == nil {
		t.Fatal("malformed node info accepted")
	}
}
