package playback

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/dmelton/go-jukebox/internal/stats"
)

// Fanout tracks live observer connections per room and delivers broadcast
// and point-to-point messages. Connection sets are mutated only by
// Connect/Disconnect; broadcasts iterate a copy, so a connection closing
// mid-broadcast never corrupts the set.
type Fanout struct {
	log   *log.Logger
	stats stats.StatsProvider

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewFanout(logger *log.Logger, st stats.StatsProvider) *Fanout {
	return &Fanout{
		log:   logger,
		stats: st,
		rooms: make(map[string]map[*Client]struct{}),
	}
}

func (f *Fanout) Connect(c *Client, roomId string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rooms[roomId] == nil {
		f.rooms[roomId] = make(map[*Client]struct{})
	}
	f.rooms[roomId][c] = struct{}{}

	f.stats.Incr(stats.ActiveConnections)
}

func (f *Fanout) Disconnect(c *Client, roomId string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	conns, ok := f.rooms[roomId]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}

	delete(conns, c)
	if len(conns) == 0 {
		delete(f.rooms, roomId)
	}

	f.stats.Decr(stats.ActiveConnections)
}

// BroadcastToRoom serializes the message once and sends it to every
// connection registered for the room. A failed send drops that connection
// but never aborts delivery to the rest.
func (f *Fanout) BroadcastToRoom(roomId string, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		f.log.Printf("marshal %s message: %v", msg.Type, err)
		return
	}

	f.mu.RLock()
	conns := make([]*Client, 0, len(f.rooms[roomId]))
	for c := range f.rooms[roomId] {
		conns = append(conns, c)
	}
	f.mu.RUnlock()

	var failed []*Client
	for _, c := range conns {
		if !c.queueMessage(data) {
			f.log.Printf("failed to send %s to client in room %s", msg.Type, roomId)
			failed = append(failed, c)
		}
	}

	for _, c := range failed {
		f.Disconnect(c, roomId)
		c.close()
	}

	f.stats.Incr(stats.BroadcastsSent)
}

// SendPersonal unicasts to one connection. Failures are reported but not
// retried.
func (f *Fanout) SendPersonal(c *Client, msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		f.log.Printf("marshal %s message: %v", msg.Type, err)
		return
	}

	if !c.queueMessage(data) {
		f.log.Printf("failed to send %s message to client", msg.Type)
	}
}

func (f *Fanout) ConnectionCount(roomId string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.rooms[roomId])
}
