package playback

import (
	"time"

	"github.com/dmelton/go-jukebox/internal/stats"
)

// advanceTimer is the auto-advance task for one session. The generation is
// captured when the timer is armed; a fired timer whose generation no
// longer matches the session's current one has been superseded and must
// not act.
type advanceTimer struct {
	generation uint64
	timer      *time.Timer
	cancel     chan struct{}
	done       chan struct{}
}

// armTimer replaces any existing timer for the session with a new one that
// fires after remaining. The caller must hold the session lock.
func (c *Coordinator) armTimer(sessionId, entryId string, remaining time.Duration) {
	c.cancelTimer(sessionId)

	c.mu.Lock()
	at := &advanceTimer{
		generation: c.generations[sessionId],
		timer:      time.NewTimer(remaining),
		cancel:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	c.timers[sessionId] = at
	c.mu.Unlock()

	c.stats.Incr(stats.ActiveTimers)
	go c.runTimer(sessionId, entryId, at)
}

// cancelTimer stops the session's timer, if any, and joins its goroutine's
// sleep before returning. Bumping the generation first makes an
// already-fired timer a provable no-op, so the join cannot deadlock
// against a fire callback waiting for the session lock.
func (c *Coordinator) cancelTimer(sessionId string) {
	c.mu.Lock()
	c.generations[sessionId]++
	at, ok := c.timers[sessionId]
	if ok {
		delete(c.timers, sessionId)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	close(at.cancel)
	<-at.done
	c.stats.Decr(stats.ActiveTimers)
}

func (c *Coordinator) runTimer(sessionId, entryId string, at *advanceTimer) {
	select {
	case <-at.timer.C:
		close(at.done)
	case <-at.cancel:
		at.timer.Stop()
		close(at.done)
		return
	}

	c.handleTrackEnd(sessionId, entryId, at.generation)
}
