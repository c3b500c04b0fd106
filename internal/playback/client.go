package playback

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/dmelton/go-jukebox/internal/types"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Client is one observer connection, bound to exactly one room.
type Client struct {
	conn      *websocket.Conn
	fanout    *Fanout
	log       *log.Logger
	user      types.User
	roomId    string
	send      chan []byte
	stop      chan struct{}
	closeOnce sync.Once
}

func NewClient(user types.User, roomId string, conn *websocket.Conn, f *Fanout, l *log.Logger) *Client {
	return &Client{
		conn:   conn,
		fanout: f,
		log:    l,
		user:   user,
		roomId: roomId,
		send:   make(chan []byte, 256),
		stop:   make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			if !c.sendMessage(websocket.TextMessage, msg) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		// observers only send heartbeats; controls go over HTTP
		if string(raw) == "ping" {
			data, err := json.Marshal(NewPongMessage())
			if err != nil {
				c.log.Println("marshal pong:", err)
				continue
			}
			c.queueMessage(data)
		}
	}
}

func (c *Client) queueMessage(msg []byte) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.fanout.Disconnect(c, c.roomId)
	c.fanout.BroadcastToRoom(c.roomId, NewMemberLeftMessage(c.user, c.fanout.ConnectionCount(c.roomId)))
	c.close()
}
