// Package client is the typed HTTP client for a session daemon's
// gateway, used by hootctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Client wraps HTTP and websocket access to the daemon gateway.
type Client struct {
	baseURL string
	wsURL   string
	token   string
	http    *http.Client
}

// ChatEntry is one chat-list row as delivered by the gateway.
type ChatEntry struct {
	ConversationID       string   `json:"conversation_id"`
	ParticipantNames     []string `json:"participant_names"`
	LastMessageText      string   `json:"last_message_text"`
	LastMessageTimestamp int64    `json:"last_message_timestamp"`
	HasMessages          bool     `json:"has_messages"`
}

// Message is one conversation message as delivered by the gateway.
type Message struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	SenderID  string `json:"sender_id"`
	Timestamp int64  `json:"timestamp"`
	Liked     bool   `json:"liked"`
}

// New creates a client for the daemon listening on addr.
func New(addr string) *Client {
	return &Client{
		baseURL: "http://" + addr,
		wsURL:   "ws://" + addr,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Login exchanges the user's phone number for a bearer token used on
// all subsequent calls.
func (c *Client) Login(ctx context.Context, phone string) error {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.post(ctx, "/v1/login", map[string]string{"phone": phone}, &resp); err != nil {
		return err
	}
	c.token = resp.Token
	return nil
}

// Status returns the daemon's lifecycle state.
func (c *Client) Status(ctx context.Context) (string, error) {
	var resp struct {
		State string `json:"state"`
	}
	if err := c.get(ctx, "/v1/status", &resp); err != nil {
		return "", err
	}
	return resp.State, nil
}

// ResolveContact resolves a phone number to a display name.
func (c *Client) ResolveContact(ctx context.Context, number string) (string, error) {
	var resp struct {
		Name string `json:"name"`
	}
	if err := c.get(ctx, "/v1/contacts/"+url.PathEscape(number), &resp); err != nil {
		return "", err
	}
	return resp.Name, nil
}

// OpenConversation returns the conversation id for the given
// participant, creating the conversation on first contact.
func (c *Client) OpenConversation(ctx context.Context, participant string) (string, error) {
	var resp struct {
		ConversationID string `json:"conversation_id"`
	}
	err := c.post(ctx, "/v1/conversations", map[string]string{"participant": participant}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ConversationID, nil
}

// Send appends a message to the conversation.
func (c *Client) Send(ctx context.Context, conversationID, text string) error {
	path := fmt.Sprintf("/v1/conversations/%s/messages", url.PathEscape(conversationID))
	return c.post(ctx, path, map[string]string{"text": text}, nil)
}

// ToggleLike flips a message's liked flag from the observed state.
func (c *Client) ToggleLike(ctx context.Context, conversationID, messageID string, currentLiked bool) error {
	path := fmt.Sprintf("/v1/conversations/%s/messages/%s/like",
		url.PathEscape(conversationID), url.PathEscape(messageID))
	return c.post(ctx, path, map[string]bool{"liked": currentLiked}, nil)
}

// Delete removes the caller's own messages from the selection and
// returns how many were deleted.
func (c *Client) Delete(ctx context.Context, conversationID string, messageIDs []string) (int, error) {
	var resp struct {
		Deleted int `json:"deleted"`
	}
	path := fmt.Sprintf("/v1/conversations/%s/deletions", url.PathEscape(conversationID))
	err := c.post(ctx, path, map[string][]string{"message_ids": messageIDs}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// WatchChats streams chat-list snapshots until ctx is cancelled.
// search, when non-empty, is applied server-side before the first
// delivery is read.
func (c *Client) WatchChats(ctx context.Context, search string, onUpdate func([]ChatEntry)) error {
	conn, err := c.dial(ctx, "/v1/chats/ws")
	if err != nil {
		return err
	}
	defer conn.Close()

	if search != "" {
		if err := conn.WriteJSON(map[string]string{"search": search}); err != nil {
			return err
		}
	}

	go closeOnDone(ctx, conn)
	for {
		var frame struct {
			Entries []ChatEntry `json:"entries"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		onUpdate(frame.Entries)
	}
}

// WatchConversation streams a conversation's message sequence until
// ctx is cancelled.
func (c *Client) WatchConversation(ctx context.Context, conversationID string, descending bool, onUpdate func([]Message)) error {
	path := "/v1/conversations/" + url.PathEscape(conversationID) + "/ws"
	if descending {
		path += "?order=desc"
	}
	conn, err := c.dial(ctx, path)
	if err != nil {
		return err
	}
	defer conn.Close()

	go closeOnDone(ctx, conn)
	for {
		var frame struct {
			Messages []Message `json:"messages"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		onUpdate(frame.Messages)
	}
}

func closeOnDone(ctx context.Context, conn *websocket.Conn) {
	<-ctx.Done()
	_ = conn.Close()
}

func (c *Client) dial(ctx context.Context, path string) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL+path, header)
	if err != nil {
		return nil, fmt.Errorf("dial daemon websocket: %w", err)
	}
	return conn, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon: HTTP %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
