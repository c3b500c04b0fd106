package database

import "time"

type User struct {
	Id              string
	DisplayName     string
	EmailAddress    string
	PasswordHash    string
	ProfileImageURL string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Room struct {
	Id        string
	Code      string
	Name      string
	HostId    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Track struct {
	Id          string
	ProviderId  string
	Title       string
	Artist      string
	Album       string
	AlbumArtURL string
	DurationMs  int
	CreatedAt   time.Time
}

// Session is the durable "now playing" record for a room.
// CurrentTrackStart is null while paused or stopped; PausedPositionMs is
// meaningful only while paused.
type Session struct {
	Id                string
	RoomId            string
	IsActive          bool
	CurrentTrackId    *string
	CurrentTrackStart *time.Time
	PausedPositionMs  int
	CreatedAt         time.Time
	EndedAt           *time.Time
}

type QueueEntry struct {
	Id        string
	SessionId string
	TrackId   string
	Position  int
	Played    bool
	PlayedAt  *time.Time
	CreatedAt time.Time
	Track     Track
	AddedBy   *User
}

type CreateAccountParams struct {
	DisplayName     string
	EmailAddress    string
	PasswordHash    string
	ProfileImageURL string
}

type UpdateAccountParams struct {
	UserId          string
	DisplayName     string
	PasswordHash    string
	ProfileImageURL string
}

type CreateRoomParams struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	HostId string `json:"-"`
}

type UpsertTrackParams struct {
	ProviderId  string
	Title       string
	Artist      string
	Album       string
	AlbumArtURL string
	DurationMs  int
}
