package signaling

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // 64 KB - enough for WebRTC SDP messages
)

// Client is a wrapper for a single websocket connection (a peer)
type Client struct {
	// Hub is a pointer to the hub that manages this client.
	Hub *Hub

	// Conn is the websocket connection.
	Conn *websocket.Conn

	// ID is a server-stamped connection id, used only in logs.
	ID string

	// RoomID/UserID record the most recent join sent on this connection
	// so an abrupt disconnect can be turned into a leave. Only the hub
	// goroutine touches them.
	RoomID string
	UserID string

	// Send is a buffered channel for all outbound messages.
	// The hub writes to this channel, and a separate goroutine (WritePump)
	// reads from it and writes to the websocket.
	Send chan *Message

	// closed is set by the hub before it closes Send, so routing to a
	// participant whose connection already went away is a no-op rather
	// than a send on a closed channel. Hub goroutine only.
	closed bool
}

// queue hands a message to the client's WritePump without ever blocking
// the hub. A full buffer means the consumer is too slow; the message is
// dropped and the rest of the fan-out continues.
func (c *Client) queue(msg *Message) {
	if c.closed {
		return
	}
	select {
	case c.Send <- msg:
	default:
		slog.Warn("send buffer full, dropping message",
			"conn", c.ID, "type", msg.Type, "room", msg.RoomID)
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	// When this function exits (e.g., connection closes), unregister the client
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Loop forever, reading messages from the connection
	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("websocket read failed", "conn", c.ID, "err", err)
			}
			break // Break the loop on error
		}

		// A frame that isn't a JSON object is logged and skipped; the
		// connection stays open.
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("discarding malformed frame", "conn", c.ID, "err", err)
			continue
		}

		// Attach the client pointer to the message
		msg.client = c

		// Send the message to the hub's inbound channel for processing
		c.Hub.Inbound <- &msg
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	// When this function exits, stop the ticker and close the connection
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		// Case 1: We have a message to send from our 'send' channel
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Write the message to the websocket
			if err := c.Conn.WriteJSON(message); err != nil {
				slog.Error("websocket write failed", "conn", c.ID, "err", err)
				return // Exit on write error
			}

		// Case 2: The ticker's timer has fired, so we send a ping
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return // Exit on ping error
			}
		}
	}
}
