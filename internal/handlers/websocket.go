package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"choose-rich-backend/internal/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ResultsFeed streams settled game outcomes to connected clients. It
// implements services.Broadcaster; settlement pushes here after each
// terminal transition.
type ResultsFeed struct {
	hub *feedHub
}

type feedHub struct {
	clients    map[string]*feedClient
	register   chan *feedClient
	unregister chan *feedClient
	broadcast  chan *feedMessage
}

// feedClient owns the write side of its connection: every outgoing frame
// goes through the send channel and is written by the client's single
// writer goroutine. The hub and the read loop only ever enqueue.
type feedClient struct {
	UserID string
	Conn   *websocket.Conn
	send   chan *feedMessage
	done   chan struct{}
}

type feedMessage struct {
	Type      string      `json:"type"`
	UserID    string      `json:"user_id,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	Data      interface{} `json:"data"`
}

func NewResultsFeed() *ResultsFeed {
	hub := &feedHub{
		clients:    make(map[string]*feedClient),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		broadcast:  make(chan *feedMessage, 100),
	}

	go hub.run()

	return &ResultsFeed{hub: hub}
}

func (c *feedClient) writePump() {
	for {
		select {
		case msg := <-c.send:
			if err := c.Conn.WriteJSON(msg); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// enqueue never blocks; a slow client drops frames rather than stalling
// the hub or the read loop.
func (c *feedClient) enqueue(msg *feedMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (f *ResultsFeed) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	client := &feedClient{
		UserID: userID,
		Conn:   conn,
		send:   make(chan *feedMessage, 32),
		done:   make(chan struct{}),
	}
	f.hub.register <- client
	go client.writePump()

	defer func() {
		f.hub.unregister <- client
		close(client.done)
		conn.Close()
	}()

	for {
		var msg feedMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		if msg.Type == "PING" {
			client.enqueue(&feedMessage{
				Type: "PONG",
				Data: gin.H{"timestamp": time.Now().Unix()},
			})
		}
	}
}

// BroadcastResult implements services.Broadcaster.
func (f *ResultsFeed) BroadcastResult(userID string, kind models.GameKind, sessionID string, won bool, payout float64) {
	msg := &feedMessage{
		Type:      "GAME_RESULT",
		UserID:    userID,
		SessionID: sessionID,
		Data: gin.H{
			"game_kind":  kind,
			"session_id": sessionID,
			"won":        won,
			"payout":     payout,
			"timestamp":  time.Now().Unix(),
		},
	}

	select {
	case f.hub.broadcast <- msg:
	default:
		log.Printf("results feed full, dropping result for session %s", sessionID)
	}
}

func (hub *feedHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client.UserID] = client
			log.Printf("Feed client registered: %s", client.UserID)

		case client := <-hub.unregister:
			if current, ok := hub.clients[client.UserID]; ok && current == client {
				delete(hub.clients, client.UserID)
				log.Printf("Feed client unregistered: %s", client.UserID)
			}

		case message := <-hub.broadcast:
			if message.UserID != "" {
				if client, ok := hub.clients[message.UserID]; ok {
					client.enqueue(message)
				}
			} else {
				for _, client := range hub.clients {
					client.enqueue(message)
				}
			}
		}
	}
}
