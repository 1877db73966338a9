package main

import (
	"html"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const maxChatLength = 200

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Inbound websocket messages. Clients subscribe to a room once after
// joining it, and may relay chat.
type clientEvent struct {
	Type       string `json:"type"`                  // "subscribe", "chat"
	RoomCode   string `json:"room_code"`             // subscribe / chat
	PlayerName string `json:"player_name,omitempty"` // chat
	Message    string `json:"message,omitempty"`     // chat
}

type gameUpdate struct {
	Type  string   `json:"type"` // "game_update"
	State Snapshot `json:"state"`
}

type chatBroadcast struct {
	Type      string `json:"type"` // "chat_message"
	Player    string `json:"player"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type kickNotice struct {
	Type   string `json:"type"` // "player_kicked"
	Player string `json:"player"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan any

	// guarded by the broadcaster's mutex
	room   string
	closed bool
}

// Broadcaster fans room events out to every subscribed connection.
// Sends are fire-and-forget: a client whose buffer is full is dropped
// rather than allowed to stall a mutation.
type Broadcaster struct {
	mu    sync.Mutex
	rooms map[string]map[*wsClient]bool
}

func newBroadcaster() *Broadcaster {
	return &Broadcaster{
		rooms: make(map[string]map[*wsClient]bool),
	}
}

// closeLocked tears a client down exactly once: the send channel is
// closed, the connection is closed, and the client leaves its room.
// Every teardown path funnels through here, so a closed channel can
// never be closed or sent to again.
func (b *Broadcaster) closeLocked(c *wsClient) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()

	if subs, ok := b.rooms[c.room]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(b.rooms, c.room)
		}
	}
	c.room = ""
}

func (b *Broadcaster) Subscribe(c *wsClient, code string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// A dropped client keeps reading until its pump notices; its
	// channel is gone, so it may not rejoin.
	if c.closed {
		return
	}

	if c.room != "" {
		if subs, ok := b.rooms[c.room]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(b.rooms, c.room)
			}
		}
	}

	c.room = code
	if b.rooms[code] == nil {
		b.rooms[code] = make(map[*wsClient]bool)
	}
	b.rooms[code][c] = true
}

// Disconnect releases a client whether or not it ever subscribed, so
// its write pump always unblocks.
func (b *Broadcaster) Disconnect(c *wsClient) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closeLocked(c)
}

func (b *Broadcaster) broadcast(code string, msg any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.rooms[code] {
		select {
		case c.send <- msg:
		default:
			b.closeLocked(c)
		}
	}
}

// BroadcastState pushes a full snapshot to every subscriber of a room.
func (b *Broadcaster) BroadcastState(code string, state Snapshot) {
	b.broadcast(code, gameUpdate{Type: "game_update", State: state})
}

// BroadcastChat relays a chat line, escaped and length-capped.
func (b *Broadcaster) BroadcastChat(code, player, text string) {
	runes := []rune(text)
	if len(runes) > maxChatLength {
		runes = runes[:maxChatLength]
	}
	b.broadcast(code, chatBroadcast{
		Type:      "chat_message",
		Player:    player,
		Text:      html.EscapeString(string(runes)),
		Timestamp: time.Now().UnixMilli(),
	})
}

// NotifyKicked tells a room which player was just removed, so that
// player's client can tear down.
func (b *Broadcaster) NotifyKicked(code, player string) {
	b.broadcast(code, kickNotice{Type: "player_kicked", Player: player})
}

// CloseRoom disconnects every subscriber of an evicted room.
func (b *Broadcaster) CloseRoom(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for c := range b.rooms[code] {
		b.closeLocked(c)
	}
	delete(b.rooms, code)
}

func serveWebSocket(cfg *Config, store *RoomStore, b *Broadcaster) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: websocket upgrade from %s: %v", realIP(r), err)
			return
		}

		client := &wsClient{
			conn: conn,
			send: make(chan any, 8),
		}

		go client.writePump()
		client.readPump(cfg, store, b)
	}
}

func (c *wsClient) readPump(cfg *Config, store *RoomStore, b *Broadcaster) {
	defer b.Disconnect(c)

	for {
		var msg clientEvent
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "subscribe":
			if _, ok := store.Get(msg.RoomCode); ok {
				b.Subscribe(c, msg.RoomCode)
				logf(cfg, "GAMES: Subscriber joined room %s", msg.RoomCode)
			}
		case "chat":
			if _, ok := store.Get(msg.RoomCode); ok {
				b.BroadcastChat(msg.RoomCode, msg.PlayerName, msg.Message)
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *wsClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
