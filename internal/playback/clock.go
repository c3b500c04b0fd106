package playback

import (
	"time"

	"github.com/dmelton/go-jukebox/internal/types"
)

// Snapshot is the in-memory authoritative playback state for one session.
// While playing, StartedAt anchors elapsed time and PositionMs is the
// position at that anchor; while paused, PositionMs is the frozen position
// and StartedAt is the zero value. A snapshot published to the
// coordinator's map is never mutated afterwards; transitions swap in a
// fresh value, so readers may use a fetched snapshot without a lock.
type Snapshot struct {
	EntryId    string
	Track      types.Track
	StartedAt  time.Time
	PositionMs int
	IsPlaying  bool
}

// Position derives the playable position at the given instant. Pure; no
// side effects. Monotone non-decreasing in now while playing, clamped to
// the track duration, and constant while paused.
func Position(s *Snapshot, now time.Time) int {
	if s == nil {
		return 0
	}

	if !s.IsPlaying {
		return s.PositionMs
	}

	pos := s.PositionMs + int(now.Sub(s.StartedAt)/time.Millisecond)
	if pos > s.Track.DurationMs {
		pos = s.Track.DurationMs
	}
	if pos < s.PositionMs {
		// now predates the anchor; never run backwards
		pos = s.PositionMs
	}

	return pos
}

// Remaining returns the playback time left at the given instant.
func Remaining(s *Snapshot, now time.Time) time.Duration {
	if s == nil {
		return 0
	}

	return time.Duration(s.Track.DurationMs-Position(s, now)) * time.Millisecond
}
