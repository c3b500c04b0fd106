package playback

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dmelton/go-jukebox/internal/database"
	"github.com/dmelton/go-jukebox/internal/stats"
	"github.com/dmelton/go-jukebox/internal/types"
)

const emptyQueueNotice = "Queue is empty! Add more songs to continue."

// Coordinator owns the authoritative in-memory playback state for every
// session and is the only writer of the durable session playback columns.
// All transitions for one session are serialized by a per-session mutex;
// the auto-advance fire path goes through the same lock. Sessions are
// fully independent of each other.
type Coordinator struct {
	log    *log.Logger
	db     database.JukeboxRepository
	fanout *Fanout
	stats  stats.StatsProvider

	mu           sync.Mutex
	snapshots    map[string]*Snapshot
	timers       map[string]*advanceTimer
	generations  map[string]uint64
	sessionLocks map[string]*sync.Mutex
}

func NewCoordinator(logger *log.Logger, db database.JukeboxRepository, fanout *Fanout, st stats.StatsProvider) *Coordinator {
	return &Coordinator{
		log:          logger,
		db:           db,
		fanout:       fanout,
		stats:        st,
		snapshots:    make(map[string]*Snapshot),
		timers:       make(map[string]*advanceTimer),
		generations:  make(map[string]uint64),
		sessionLocks: make(map[string]*sync.Mutex),
	}
}

// lockSession serializes all transitions for one session. Returns the
// unlock func.
func (c *Coordinator) lockSession(sessionId string) func() {
	c.mu.Lock()
	l, ok := c.sessionLocks[sessionId]
	if !ok {
		l = &sync.Mutex{}
		c.sessionLocks[sessionId] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (c *Coordinator) StartPlayback(sessionId string) (types.PlaybackState, error) {
	unlock := c.lockSession(sessionId)
	defer unlock()

	return c.start(sessionId, "", 0)
}

func (c *Coordinator) PausePlayback(sessionId string) (types.PlaybackState, error) {
	unlock := c.lockSession(sessionId)
	defer unlock()

	return c.pause(sessionId)
}

func (c *Coordinator) ResumePlayback(sessionId string) (types.PlaybackState, error) {
	unlock := c.lockSession(sessionId)
	defer unlock()

	return c.resume(sessionId)
}

func (c *Coordinator) SkipToNext(sessionId string) (types.PlaybackState, error) {
	unlock := c.lockSession(sessionId)
	defer unlock()

	return c.skip(sessionId)
}

// GetPlaybackState computes the current state from the best available
// snapshot. No side effects.
func (c *Coordinator) GetPlaybackState(sessionId string) (types.PlaybackState, error) {
	c.mu.Lock()
	snap := c.snapshots[sessionId]
	c.mu.Unlock()

	if snap == nil {
		session, err := c.db.GetSessionById(sessionId)
		if err != nil {
			return emptyState(), fmt.Errorf("get session: %w", err)
		}

		snap, err = c.reconstruct(session)
		if err != nil {
			return emptyState(), err
		}
	}

	return stateFromSnapshot(snap, Now()), nil
}

// OnTrackEnqueued auto-starts playback when a track lands on a stopped
// session's queue. A new arrival never interrupts current playback.
func (c *Coordinator) OnTrackEnqueued(sessionId string) (types.PlaybackState, error) {
	unlock := c.lockSession(sessionId)
	defer unlock()

	session, err := c.db.GetSessionById(sessionId)
	if err != nil {
		return emptyState(), fmt.Errorf("get session: %w", err)
	}

	if session.CurrentTrackStart == nil && session.CurrentTrackId == nil {
		return c.start(sessionId, "", 0)
	}

	snap, err := c.snapshotFor(session)
	if err != nil {
		return emptyState(), err
	}

	return stateFromSnapshot(snap, Now()), nil
}

// Recover rebuilds in-memory state for every session that was playing
// when the process last wrote durable state. Tracks that finished while
// the process was down are marked played and advanced past. No observers
// are connected at boot, so broadcasts during recovery reach nobody.
func (c *Coordinator) Recover() error {
	sessions, err := c.db.ListActiveSessions()
	if err != nil {
		return fmt.Errorf("list active sessions: %w", err)
	}

	for _, session := range sessions {
		if err := c.recoverSession(session); err != nil {
			c.log.Printf("recover session %s: %v", session.Id, err)
		}
	}

	return nil
}

func (c *Coordinator) recoverSession(session database.Session) error {
	unlock := c.lockSession(session.Id)
	defer unlock()

	if session.CurrentTrackId == nil || session.CurrentTrackStart == nil {
		return nil
	}

	track, err := c.db.GetTrackById(*session.CurrentTrackId)
	if err != nil {
		return fmt.Errorf("get track: %w", err)
	}

	entry, found, err := c.findEntryForTrack(session.Id, track.Id)
	if err != nil {
		return err
	}
	if !found {
		_, err := c.playNext(session.Id)
		return err
	}

	now := Now()
	elapsed := int(now.Sub(*session.CurrentTrackStart) / time.Millisecond)
	if elapsed >= track.DurationMs {
		// finished while the process was down
		if err := c.db.MarkPlayed(entry.Id, now); err != nil {
			return fmt.Errorf("mark played: %w", err)
		}
		_, err := c.playNext(session.Id)
		return err
	}

	c.log.Printf("resuming session %s at %dms into %q", session.Id, elapsed, track.Title)
	_, err = c.start(session.Id, entry.Id, elapsed)
	return err
}

// ReleaseSession drops all in-memory state for a session that is being
// ended. The durable row is left to the caller.
func (c *Coordinator) ReleaseSession(sessionId string) {
	unlock := c.lockSession(sessionId)
	defer unlock()

	c.cancelTimer(sessionId)

	c.mu.Lock()
	delete(c.snapshots, sessionId)
	delete(c.generations, sessionId)
	delete(c.sessionLocks, sessionId)
	c.mu.Unlock()
}

// Shutdown cancels every live timer. Durable state is untouched, so a
// later Recover picks up where playback left off.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.timers))
	for id := range c.timers {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		unlock := c.lockSession(id)
		c.cancelTimer(id)
		unlock()
	}
}

// start begins playback of a queue entry at the given offset. An empty
// entryId means "next unplayed from the queue". Callers hold the session
// lock. Note: starting an entry that is already playing restarts its
// anchor at the given offset; callers are responsible for not invoking
// start redundantly.
func (c *Coordinator) start(sessionId, entryId string, positionMs int) (types.PlaybackState, error) {
	session, err := c.db.GetSessionById(sessionId)
	if err != nil {
		return emptyState(), fmt.Errorf("get session: %w", err)
	}

	var entry database.QueueEntry
	if entryId == "" {
		entry, err = c.db.GetNextUnplayed(sessionId)
		if errors.Is(err, sql.ErrNoRows) {
			// empty queue is a valid terminal state, not an error
			return c.stop(session)
		}
		if err != nil {
			return emptyState(), fmt.Errorf("get next unplayed: %w", err)
		}
	} else {
		entry, err = c.db.GetQueueEntryById(entryId)
		if err != nil {
			return emptyState(), fmt.Errorf("get queue entry: %w", err)
		}
	}

	track := trackFromDB(entry.Track)
	now := Now()

	// durable write first: the snapshot must never advertise state the
	// store does not have
	if err := c.db.UpdateSessionPlayback(sessionId, &entry.TrackId, &now, 0); err != nil {
		return emptyState(), fmt.Errorf("update session playback: %w", err)
	}

	snap := &Snapshot{
		EntryId:    entry.Id,
		Track:      track,
		StartedAt:  now,
		PositionMs: positionMs,
		IsPlaying:  true,
	}
	c.mu.Lock()
	c.snapshots[sessionId] = snap
	c.mu.Unlock()

	// the timer waits out the remaining time, not the full duration
	c.armTimer(sessionId, entry.Id, Remaining(snap, now))

	state := stateFromSnapshot(snap, now)
	c.fanout.BroadcastToRoom(session.RoomId, NewPlaybackStateMessage(state))

	return state, nil
}

// stop clears the current track and leaves the session in the Stopped
// state. No timer is armed and nothing is broadcast.
func (c *Coordinator) stop(session database.Session) (types.PlaybackState, error) {
	if err := c.db.UpdateSessionPlayback(session.Id, nil, nil, 0); err != nil {
		return emptyState(), fmt.Errorf("update session playback: %w", err)
	}

	c.cancelTimer(session.Id)

	c.mu.Lock()
	delete(c.snapshots, session.Id)
	c.mu.Unlock()

	return emptyState(), nil
}

func (c *Coordinator) pause(sessionId string) (types.PlaybackState, error) {
	session, err := c.db.GetSessionById(sessionId)
	if err != nil {
		return emptyState(), fmt.Errorf("get session: %w", err)
	}

	snap, err := c.snapshotFor(session)
	if err != nil {
		return emptyState(), err
	}

	now := Now()
	position := Position(snap, now)

	var trackId *string
	if snap != nil {
		trackId = &snap.Track.Id
	}

	if err := c.db.UpdateSessionPlayback(sessionId, trackId, nil, position); err != nil {
		return emptyState(), fmt.Errorf("update session playback: %w", err)
	}

	// published snapshots are immutable; freeze into a fresh value and
	// swap the map entry so concurrent readers never see a half-paused one
	var frozen *Snapshot
	if snap != nil {
		frozen = &Snapshot{
			EntryId:    snap.EntryId,
			Track:      snap.Track,
			PositionMs: position,
		}
		c.mu.Lock()
		c.snapshots[sessionId] = frozen
		c.mu.Unlock()
	}

	c.cancelTimer(sessionId)

	state := stateFromSnapshot(frozen, now)
	c.fanout.BroadcastToRoom(session.RoomId, NewPlaybackStateMessage(state))

	return state, nil
}

func (c *Coordinator) resume(sessionId string) (types.PlaybackState, error) {
	session, err := c.db.GetSessionById(sessionId)
	if err != nil {
		return emptyState(), fmt.Errorf("get session: %w", err)
	}

	// already playing; leave the anchor alone
	if session.CurrentTrackStart != nil {
		snap, err := c.snapshotFor(session)
		if err != nil {
			return emptyState(), err
		}
		return stateFromSnapshot(snap, Now()), nil
	}

	if session.CurrentTrackId == nil {
		return c.start(sessionId, "", 0)
	}

	entry, found, err := c.findEntryForTrack(sessionId, *session.CurrentTrackId)
	if err != nil {
		return emptyState(), err
	}
	if !found {
		return c.start(sessionId, "", 0)
	}

	return c.start(sessionId, entry.Id, session.PausedPositionMs)
}

func (c *Coordinator) skip(sessionId string) (types.PlaybackState, error) {
	now := Now()

	c.mu.Lock()
	snap := c.snapshots[sessionId]
	c.mu.Unlock()

	if snap != nil && snap.EntryId != "" {
		if err := c.db.MarkPlayed(snap.EntryId, now); err != nil {
			return emptyState(), fmt.Errorf("mark played: %w", err)
		}
	} else {
		session, err := c.db.GetSessionById(sessionId)
		if err != nil {
			return emptyState(), fmt.Errorf("get session: %w", err)
		}

		if session.CurrentTrackId != nil {
			entry, found, err := c.findEntryForTrack(sessionId, *session.CurrentTrackId)
			if err != nil {
				return emptyState(), err
			}
			if found {
				if err := c.db.MarkPlayed(entry.Id, now); err != nil {
					return emptyState(), fmt.Errorf("mark played: %w", err)
				}
			}
		}
	}

	c.cancelTimer(sessionId)

	return c.playNext(sessionId)
}

// handleTrackEnd is the auto-advance fire path. The generation stamp
// detects timers that were superseded between firing and acquiring the
// session lock; stale fires are discarded.
func (c *Coordinator) handleTrackEnd(sessionId, entryId string, generation uint64) {
	unlock := c.lockSession(sessionId)
	defer unlock()

	c.mu.Lock()
	current, tracked := c.generations[sessionId]
	if !tracked || current != generation {
		c.mu.Unlock()
		c.log.Printf("discarding stale auto-advance for session %s", sessionId)
		return
	}
	delete(c.timers, sessionId)
	c.mu.Unlock()

	c.stats.Decr(stats.ActiveTimers)
	c.stats.Incr(stats.AutoAdvances)
	c.log.Printf("track ended in session %s, playing next", sessionId)

	if err := c.db.MarkPlayed(entryId, Now()); err != nil {
		c.log.Printf("mark played on auto-advance: %v", err)
		return
	}

	if _, err := c.playNext(sessionId); err != nil {
		c.log.Printf("play next on auto-advance: %v", err)
	}
}

// playNext starts the lowest-position unplayed entry, or transitions to
// Stopped when the queue is drained. The empty-queue broadcast order is a
// UI contract: state first, then queue, then the notification.
func (c *Coordinator) playNext(sessionId string) (types.PlaybackState, error) {
	session, err := c.db.GetSessionById(sessionId)
	if err != nil {
		return emptyState(), fmt.Errorf("get session: %w", err)
	}

	entry, err := c.db.GetNextUnplayed(sessionId)
	if errors.Is(err, sql.ErrNoRows) {
		state, err := c.stop(session)
		if err != nil {
			return state, err
		}

		c.fanout.BroadcastToRoom(session.RoomId, NewPlaybackStateMessage(state))
		c.broadcastQueue(session)
		c.fanout.BroadcastToRoom(session.RoomId, NewNotificationMessage(emptyQueueNotice, "info"))

		return state, nil
	}
	if err != nil {
		return emptyState(), fmt.Errorf("get next unplayed: %w", err)
	}

	state, err := c.start(sessionId, entry.Id, 0)
	if err != nil {
		return state, err
	}

	c.broadcastQueue(session)

	return state, nil
}

func (c *Coordinator) broadcastQueue(session database.Session) {
	queue, err := c.db.GetQueue(session.Id)
	if err != nil {
		c.log.Printf("get queue for session %s: %v", session.Id, err)
		return
	}

	recent, err := c.db.GetRecentlyPlayed(session.Id, 0)
	if err != nil {
		c.log.Printf("get recently played for session %s: %v", session.Id, err)
		return
	}

	c.fanout.BroadcastToRoom(session.RoomId, NewQueueUpdateMessage(QueueItems(queue), QueueItems(recent)))
}

// snapshotFor returns the in-memory snapshot when present, else one
// reconstructed from the durable session row.
func (c *Coordinator) snapshotFor(session database.Session) (*Snapshot, error) {
	c.mu.Lock()
	snap := c.snapshots[session.Id]
	c.mu.Unlock()

	if snap != nil {
		return snap, nil
	}

	return c.reconstruct(session)
}

// reconstruct derives a snapshot from durable state alone. The entry id
// is unknown to the durable row; paths that need it resolve it through
// the queue.
func (c *Coordinator) reconstruct(session database.Session) (*Snapshot, error) {
	if session.CurrentTrackId == nil {
		return nil, nil
	}

	dbTrack, err := c.db.GetTrackById(*session.CurrentTrackId)
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}

	snap := &Snapshot{Track: trackFromDB(dbTrack)}
	if session.CurrentTrackStart != nil {
		snap.IsPlaying = true
		snap.StartedAt = *session.CurrentTrackStart
		snap.PositionMs = 0
	} else {
		snap.PositionMs = session.PausedPositionMs
	}

	return snap, nil
}

func (c *Coordinator) findEntryForTrack(sessionId, trackId string) (database.QueueEntry, bool, error) {
	queue, err := c.db.GetQueue(sessionId)
	if err != nil {
		return database.QueueEntry{}, false, fmt.Errorf("get queue: %w", err)
	}

	for _, entry := range queue {
		if entry.TrackId == trackId {
			return entry, true, nil
		}
	}

	return database.QueueEntry{}, false, nil
}

func emptyState() types.PlaybackState {
	return types.PlaybackState{
		IsPlaying:         false,
		CurrentTrack:      nil,
		PositionMs:        0,
		PlaybackStartedAt: nil,
	}
}

func stateFromSnapshot(snap *Snapshot, now time.Time) types.PlaybackState {
	if snap == nil {
		return emptyState()
	}

	track := snap.Track
	state := types.PlaybackState{
		IsPlaying:    snap.IsPlaying,
		CurrentTrack: &track,
		PositionMs:   Position(snap, now),
	}
	if snap.IsPlaying {
		startedAt := snap.StartedAt
		state.PlaybackStartedAt = &startedAt
	}

	return state
}

func trackFromDB(t database.Track) types.Track {
	return types.Track{
		Id:          t.Id,
		ProviderId:  t.ProviderId,
		Title:       t.Title,
		Artist:      t.Artist,
		Album:       t.Album,
		AlbumArtURL: t.AlbumArtURL,
		DurationMs:  t.DurationMs,
	}
}

// QueueItems flattens queue entries into the client-facing shape.
func QueueItems(entries []database.QueueEntry) []types.QueueItem {
	items := make([]types.QueueItem, 0, len(entries))
	for _, entry := range entries {
		item := types.QueueItem{
			Id:          entry.Id,
			ProviderId:  entry.Track.ProviderId,
			Title:       entry.Track.Title,
			Artist:      entry.Track.Artist,
			Album:       entry.Track.Album,
			AlbumArtURL: entry.Track.AlbumArtURL,
			DurationMs:  entry.Track.DurationMs,
			PlayedAt:    entry.PlayedAt,
		}
		if entry.AddedBy != nil {
			item.AddedBy = &types.User{
				Id:              entry.AddedBy.Id,
				DisplayName:     entry.AddedBy.DisplayName,
				ProfileImageURL: entry.AddedBy.ProfileImageURL,
			}
		}

		items = append(items, item)
	}

	return items
}
