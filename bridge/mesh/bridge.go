// Package mesh bridges the engine to a Meshtastic mesh radio network.
// Outbound traffic is plain text, split over the node's small payload
// limit; inbound node telemetry is normalized into the target tracker.
// Mesh-derived nodes deliberately share the mqtt_ ID space — both
// arrive over the same broker in most deployments and the loopback
// rule only cares about the prefix.
package mesh

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/valpatel/tritium-sc/engine-core/errkind"
	"github.com/valpatel/tritium-sc/engine-core/model"
	"github.com/valpatel/tritium-sc/engine-core/tracker"
)

// DefaultMaxTextBytes is the Meshtastic payload ceiling for a text
// message after protocol overhead.
const DefaultMaxTextBytes = 200

// Transport sends one text chunk to the mesh. Implementations wrap a
// serial device or a broker-side gateway; tests use a recorder.
type Transport interface {
	SendText(chunk string) error
}

// Bridge splits outbound text and normalizes inbound node telemetry.
type Bridge struct {
	transport Transport
	tracker   *tracker.Tracker
	maxBytes  int
	log       *slog.Logger
}

// NewBridge wires the bridge. maxBytes<=0 uses DefaultMaxTextBytes.
func NewBridge(transport Transport, trk *tracker.Tracker, maxBytes int, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxTextBytes
	}
	return &Bridge{transport: transport, tracker: trk, maxBytes: maxBytes, log: log}
}

// SendText transmits msg, splitting it into payload-sized chunks. Long
// messages split at space boundaries when one falls inside the chunk;
// multi-part sends are tagged (i/n) so receivers can reassemble.
func (b *Bridge) SendText(msg string) error {
	chunks := SplitText(msg, b.maxBytes)
	for i, chunk := range chunks {
		if len(chunks) > 1 {
			chunk = fmt.Sprintf("(%d/%d) %s", i+1, len(chunks), chunk)
		}
		if err := b.transport.SendText(chunk); err != nil {
			return errkind.New(errkind.TransientIO, "mesh send", err)
		}
	}
	return nil
}

// SplitText breaks msg into chunks of at most maxBytes bytes, preferring
// to break at the last space inside the limit. Multi-part tags consume
// part of the budget, so chunks leave headroom for them.
func SplitText(msg string, maxBytes int) []string {
	const tagReserve = 10 // "(nn/nn) "
	if len(msg) <= maxBytes {
		return []string{msg}
	}
	limit := maxBytes - tagReserve
	if limit < 1 {
		limit = 1
	}
	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= limit {
			chunks = append(chunks, msg)
			break
		}
		cut := limit
		if idx := strings.LastIndexByte(msg[:limit], ' '); idx > limit/2 {
			cut = idx
		}
		chunks = append(chunks, strings.TrimRight(msg[:cut], " "))
		msg = strings.TrimLeft(msg[cut:], " ")
	}
	return chunks
}

// nodeInfo is the JSON document a mesh gateway forwards per node
// position/telemetry beacon.
type nodeInfo struct {
	NodeID   string   `json:"node_id"`
	Name     string   `json:"name,omitempty"`
	Lat      *float64 `json:"lat,omitempty"`
	Lng      *float64 `json:"lng,omitempty"`
	Alt      float64  `json:"alt,omitempty"`
	Battery  float64  `json:"battery,omitempty"`
	SNR      float64  `json:"snr,omitempty"`
}

// HandleNodeInfo folds one node beacon into the tracker.
func (b *Bridge) HandleNodeInfo(data []byte) error {
	var n nodeInfo
	if err := json.Unmarshal(data, &n); err != nil {
		return errkind.New(errkind.ProtocolError, "decode mesh node", err)
	}
	if n.NodeID == "" {
		return errkind.New(errkind.ProtocolError, "decode mesh node", fmt.Errorf("missing node_id"))
	}
	name := n.Name
	if name == "" {
		name = n.NodeID
	}
	v := model.TargetView{
		TargetID:  tracker.PrefixMQTT + "mesh-" + n.NodeID,
		Name:      name,
		Alliance:  string(model.Friendly),
		AssetType: model.AssetPerson,
		Battery:   n.Battery,
		Status:    string(model.StatusActive),
	}
	if n.Lat != nil && n.Lng != nil {
		v.Geo = &model.GeoPoint{Lat: *n.Lat, Lng: *n.Lng, Alt: n.Alt}
		if ref := model.Reference(); ref != nil {
			v.Position = ref.ToLocal(*v.Geo)
		}
	}
	return b.tracker.UpdateExternal("mqtt", v, 0.8)
}
