package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hoot-im/hoot/internal/chat"
	"github.com/hoot-im/hoot/internal/chatlist"
	"github.com/hoot-im/hoot/internal/gesture"
	"github.com/hoot-im/hoot/internal/stream"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Loopback-only server, token already checked by middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsConn serializes writes; subscription callbacks and control frames
// arrive on different goroutines.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type chatEntryDTO struct {
	ConversationID       string   `json:"conversation_id"`
	ParticipantNames     []string `json:"participant_names"`
	LastMessageText      string   `json:"last_message_text"`
	LastMessageTimestamp int64    `json:"last_message_timestamp"`
	HasMessages          bool     `json:"has_messages"`
}

type messageDTO struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	SenderID  string `json:"sender_id"`
	Timestamp int64  `json:"timestamp"`
	Liked     bool   `json:"liked"`
}

// handleChatListWS streams chat-list snapshots over a websocket. The
// client may send {"search": "term"} frames to filter the list; an
// empty term clears the filter.
func (s *Server) handleChatListWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ws := &wsConn{conn: conn}

	agg := chatlist.New(s.store, s.dir, s.authn.Current(), s.logger)
	unsub, err := agg.SubscribeList(func(entries []chatlist.Entry) {
		dtos := make([]chatEntryDTO, 0, len(entries))
		for _, e := range entries {
			dtos = append(dtos, chatEntryDTO{
				ConversationID:       e.ConversationID,
				ParticipantNames:     e.ParticipantNames,
				LastMessageText:      e.LastMessageText,
				LastMessageTimestamp: e.LastMessageTimestamp,
				HasMessages:          e.HasMessages,
			})
		}
		if err := ws.writeJSON(map[string]any{"type": "chat_list", "entries": dtos}); err != nil {
			_ = conn.Close()
		}
	})
	if err != nil {
		s.logger.Warn("chat list subscription failed", zap.Error(err))
		_ = conn.Close()
		return
	}
	defer unsub()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame struct {
			Search *string `json:"search"`
		}
		if err := json.Unmarshal(data, &frame); err != nil || frame.Search == nil {
			continue
		}
		agg.Search(*frame.Search)
	}
}

// handleConversationWS streams a conversation's full message sequence
// over a websocket, re-sent on every remote change. ?order=desc flips
// to most-recent-first. The client may send {"tap": "<message-id>"}
// frames; two taps on the same message within the double-tap window
// toggle its like.
func (s *Server) handleConversationWS(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]
	order := stream.Ascending
	if r.URL.Query().Get("order") == "desc" {
		order = stream.Descending
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ws := &wsConn{conn: conn}

	unsub, err := s.streams.Subscribe(conversationID, order, func(msgs []chat.Message) {
		dtos := make([]messageDTO, 0, len(msgs))
		for _, m := range msgs {
			dtos = append(dtos, messageDTO{
				ID:        m.ID,
				Text:      m.Text,
				SenderID:  m.SenderID,
				Timestamp: m.Timestamp,
				Liked:     m.Liked,
			})
		}
		if err := ws.writeJSON(map[string]any{"type": "messages", "messages": dtos}); err != nil {
			_ = conn.Close()
		}
	})
	if err != nil {
		s.logger.Warn("conversation subscription failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		_ = conn.Close()
		return
	}
	defer unsub()
	defer conn.Close()

	detectors := make(map[string]*gesture.Detector)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame struct {
			Tap string `json:"tap"`
		}
		if err := json.Unmarshal(data, &frame); err != nil || frame.Tap == "" {
			continue
		}
		det := detectors[frame.Tap]
		if det == nil {
			det = gesture.NewDetector(gesture.DefaultThreshold)
			detectors[frame.Tap] = det
		}
		if !det.Tap(time.Now()) {
			continue
		}
		s.likeFromTap(r.Context(), conversationID, frame.Tap)
	}
}

// likeFromTap resolves the message's current liked state and toggles
// it. A message deleted between tap and lookup is skipped.
func (s *Server) likeFromTap(ctx context.Context, conversationID, messageID string) {
	doc, err := s.store.GetDocument(ctx, chat.MessagePath(conversationID, messageID))
	if err != nil || doc == nil {
		return
	}
	if err := s.mutator.ToggleLike(ctx, conversationID, messageID, doc.Bool("liked")); err != nil {
		s.logger.Warn("double-tap like failed",
			zap.String("message_id", messageID), zap.Error(err))
	}
}
