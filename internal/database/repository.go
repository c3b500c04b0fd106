package database

import "time"

type JukeboxRepository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (User, error)
	UpdateAccount(params UpdateAccountParams) (User, error)
	GetAccountById(id string) (User, error)
	GetAccountByEmail(email string) (User, error)

	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomByCode(code string) (Room, error)
	GetRoomById(id string) (Room, error)
	CloseRoom(id string) error
	AddRoomMember(roomId, userId string) error
	RemoveRoomMember(roomId, userId string) error
	GetRoomMembers(roomId string) ([]User, error)

	UpsertTrack(params UpsertTrackParams) (Track, error)
	GetTrackById(id string) (Track, error)

	CreateSession(roomId string) (Session, error)
	GetSessionById(id string) (Session, error)
	GetActiveSession(roomId string) (Session, error)
	ListActiveSessions() ([]Session, error)
	EndSession(id string) error
	// UpdateSessionPlayback writes all three playback columns at once; nil
	// pointers are persisted as SQL NULL.
	UpdateSessionPlayback(sessionId string, currentTrackId *string, startedAt *time.Time, pausedPositionMs int) error

	AddQueueEntry(sessionId, trackId, addedBy string) (QueueEntry, error)
	GetNextUnplayed(sessionId string) (QueueEntry, error)
	GetQueueEntryById(id string) (QueueEntry, error)
	GetQueue(sessionId string) ([]QueueEntry, error)
	GetRecentlyPlayed(sessionId string, limit int) ([]QueueEntry, error)
	MarkPlayed(entryId string, playedAt time.Time) error
}
