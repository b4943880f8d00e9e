package cot

import (
	"encoding/xml"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valpatel/tritium-sc/engine-core/errkind"
)

// geoChatType is the CoT event type for GeoChat messages.
const geoChatType = "b-t-f"

// ChatMessage is one normalized GeoChat exchange.
type ChatMessage struct {
	SenderUID      string
	SenderCallsign string
	Chatroom       string
	Message        string
	Lat, Lng       float64
	Direction      string // "inbound" | "outbound"
	ReceivedAt     time.Time
}

// BuildGeoChat renders a chat message as a GeoChat event.
func BuildGeoChat(msg ChatMessage, now time.Time, staleSeconds float64) Event {
	room := msg.Chatroom
	if room == "" {
		room = "All Chat Rooms"
	}
	return Event{
		Version: "2.0",
		UID:     fmt.Sprintf("GeoChat.%s.%s.%d", msg.SenderUID, room, now.UnixMilli()),
		Type:    geoChatType,
		How:     "h-g-i-g-o",
		Time:    formatTime(now),
		Start:   formatTime(now),
		Stale:   formatTime(now.Add(time.Duration(staleSeconds * float64(time.Second)))),
		Point:   Point{Lat: msg.Lat, Lon: msg.Lng, CE: unknownErr, LE: unknownErr},
		Detail: &Detail{
			Chat: &Chat{
				ID:             room,
				Chatroom:       room,
				SenderCallsign: msg.SenderCallsign,
			},
			Remarks: &Remarks{Source: msg.SenderUID, Text: msg.Message},
		},
	}
}

// ParseGeoChat decodes a GeoChat event, tolerating senders that use the
// non-standard room attribute instead of chatroom, or that omit the
// chat element entirely and only fill remarks.
func ParseGeoChat(data []byte) (ChatMessage, error) {
	var ev Event
	if err := xml.Unmarshal(data, &ev); err != nil {
		return ChatMessage{}, errkind.New(errkind.ProtocolError, "parse geochat", err)
	}
	return GeoChatFromEvent(ev)
}

// GeoChatFromEvent extracts the chat payload from a decoded event.
func GeoChatFromEvent(ev Event) (ChatMessage, error) {
	if ev.Type != geoChatType {
		return ChatMessage{}, errkind.New(errkind.ProtocolError, "parse geochat",
			fmt.Errorf("type %q is not %s", ev.Type, geoChatType))
	}
	msg := ChatMessage{Lat: ev.Point.Lat, Lng: ev.Point.Lon, Direction: "inbound"}
	if ev.Detail != nil {
		if chat := ev.Detail.Chat; chat != nil {
			msg.SenderCallsign = chat.SenderCallsign
			msg.Chatroom = chat.Chatroom
			if msg.Chatroom == "" {
				msg.Chatroom = chat.Room
			}
		}
		if rem := ev.Detail.Remarks; rem != nil {
			msg.Message = strings.TrimSpace(rem.Text)
			msg.SenderUID = rem.Source
		}
	}
	if msg.SenderUID == "" {
		// GeoChat UIDs embed the sender: GeoChat.<uid>.<room>.<serial>.
		parts := strings.Split(ev.UID, ".")
		if len(parts) >= 2 {
			msg.SenderUID = parts[1]
		}
	}
	if msg.Message == "" {
		return ChatMessage{}, errkind.New(errkind.ProtocolError, "parse geochat",
			fmt.Errorf("empty remarks"))
	}
	return msg, nil
}

// ChatHistory is the bounded in-memory chat log the bridge appends to.
type ChatHistory struct {
	mu    sync.Mutex
	limit int
	msgs  []ChatMessage
}

// NewChatHistory returns a history retaining the latest limit messages.
func NewChatHistory(limit int) *ChatHistory {
	if limit <= 0 {
		limit = 200
	}
	return &ChatHistory{limit: limit}
}

// Append records a message, evicting the oldest beyond the limit.
func (h *ChatHistory) Append(msg ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	if len(h.msgs) > h.limit {
		h.msgs = h.msgs[len(h.msgs)-h.limit:]
	}
}

// Messages returns a copy of the log, oldest first.
func (h *ChatHistory) Messages() []ChatMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ChatMessage{}, h.msgs...)
}
