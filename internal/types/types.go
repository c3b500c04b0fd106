package types

import (
	"time"
)

type User struct {
	Id              string    `json:"id"`
	DisplayName     string    `json:"display_name"`
	EmailAddress    string    `json:"email_address,omitempty"`
	ProfileImageURL string    `json:"profile_image_url,omitempty"`
	Password        string    `json:"-"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id              string    `json:"id"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	HostId          string    `json:"host_id"`
	IsActive        bool      `json:"is_active"`
	Members         []User    `json:"members,omitempty"`
	ConnectionCount int       `json:"connection_count"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

type Track struct {
	Id          string `json:"id"`
	ProviderId  string `json:"provider_id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	AlbumArtURL string `json:"album_art_url,omitempty"`
	DurationMs  int    `json:"duration_ms"`
}

// QueueItem is the flattened track-plus-entry shape sent to clients in
// queue_update payloads. PlayedAt is set only for recently played items.
type QueueItem struct {
	Id          string     `json:"id"`
	ProviderId  string     `json:"provider_id"`
	Title       string     `json:"title"`
	Artist      string     `json:"artist"`
	Album       string     `json:"album,omitempty"`
	AlbumArtURL string     `json:"album_art_url,omitempty"`
	DurationMs  int        `json:"duration_ms"`
	AddedBy     *User      `json:"added_by"`
	PlayedAt    *time.Time `json:"played_at,omitempty"`
}

// PlaybackState is the canonical state shape returned by every playback
// operation and carried in playback_state broadcasts.
type PlaybackState struct {
	IsPlaying         bool       `json:"is_playing"`
	CurrentTrack      *Track     `json:"current_track"`
	PositionMs        int        `json:"position_ms"`
	PlaybackStartedAt *time.Time `json:"playback_started_at"`
}
