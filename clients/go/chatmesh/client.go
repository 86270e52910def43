// Package chatmesh provides a WebSocket client for the chatmesh realtime backbone.
package chatmesh

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Frame kinds accepted by the gateway.
const (
	KindMessage           = "message"
	KindConnectionRequest = "connection_request"
)

// Frame is one outgoing WebSocket frame. The server stamps the connection
// id and message id; clients may pre-set the id for tracing.
type Frame struct {
	MessageID   string `json:"id,omitempty"`
	Kind        string `json:"kind"`
	SubType     string `json:"sub_type,omitempty"`
	AccessToken string `json:"access_token"`
	Body        string `json:"body,omitempty"`
	StickerRef  string `json:"sticker,omitempty"`
	ReactionRef string `json:"reaction,omitempty"`
	ChatID      string `json:"chat_id,omitempty"`
	Signature   string `json:"sig,omitempty"`
}

// IncomingFrame is one delivery pushed by the server.
type IncomingFrame struct {
	MessageID string `json:"id,omitempty"`
	ChatID    string `json:"chat_id,omitempty"`
	Status    string `json:"status"`
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"ts"`
}

// Client holds one WebSocket connection to a chatmesh gateway.
type Client struct {
	URL         string
	AccessToken string

	secret  []byte
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// NewClient creates a client for the given ws:// or wss:// endpoint.
// The secret is the base64 shared signing key issued alongside the token.
func NewClient(url, accessToken, secretB64 string) (*Client, error) {
	secret, err := base64.StdEncoding.DecodeString(secretB64)
	if err != nil {
		return nil, fmt.Errorf("invalid signing secret: %w", err)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("signing secret must not be empty")
	}
	return &Client{URL: url, AccessToken: accessToken, secret: secret}, nil
}

// Connect dials the gateway and registers the connection. The registration
// frame must be the first frame on the socket; the server closes connections
// that open with anything else.
func (c *Client) Connect(ctx context.Context) error {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.URL, err)
	}
	c.ws = ws

	return c.writeFrame(&Frame{
		Kind:        KindConnectionRequest,
		AccessToken: c.AccessToken,
	})
}

// Send publishes a text message into a chat.
func (c *Client) Send(chatID, body string) error {
	return c.writeFrame(&Frame{
		Kind:        KindMessage,
		AccessToken: c.AccessToken,
		Body:        body,
		ChatID:      chatID,
	})
}

// SendSticker publishes a sticker reference into a chat.
func (c *Client) SendSticker(chatID, stickerRef string) error {
	return c.writeFrame(&Frame{
		Kind:        KindMessage,
		SubType:     "sticker",
		AccessToken: c.AccessToken,
		StickerRef:  stickerRef,
		ChatID:      chatID,
	})
}

// SendReaction publishes a reaction reference into a chat.
func (c *Client) SendReaction(chatID, reactionRef string) error {
	return c.writeFrame(&Frame{
		Kind:        KindMessage,
		SubType:     "reaction",
		AccessToken: c.AccessToken,
		ReactionRef: reactionRef,
		ChatID:      chatID,
	})
}

// Receive blocks until the server pushes the next frame.
func (c *Client) Receive() (*IncomingFrame, error) {
	if c.ws == nil {
		return nil, fmt.Errorf("not connected")
	}
	var in IncomingFrame
	if err := c.ws.ReadJSON(&in); err != nil {
		return nil, err
	}
	return &in, nil
}

// Close sends a clean close frame and tears down the connection.
func (c *Client) Close() error {
	if c.ws == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	c.writeMu.Unlock()
	return c.ws.Close()
}

func (c *Client) writeFrame(f *Frame) error {
	if c.ws == nil {
		return fmt.Errorf("not connected")
	}
	f.Signature = signFrame(c.secret, f)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(f)
}
