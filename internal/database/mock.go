package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockJukeboxRepository struct {
	mock.Mock
}

func (m *MockJukeboxRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockJukeboxRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockJukeboxRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockJukeboxRepository) GetAccountById(id string) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockJukeboxRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockJukeboxRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	args := m.Called(params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockJukeboxRepository) GetRoomByCode(code string) (Room, error) {
	args := m.Called(code)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockJukeboxRepository) GetRoomById(id string) (Room, error) {
	args := m.Called(id)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockJukeboxRepository) CloseRoom(id string) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockJukeboxRepository) AddRoomMember(roomId, userId string) error {
	args := m.Called(roomId, userId)
	return args.Error(0)
}
func (m *MockJukeboxRepository) RemoveRoomMember(roomId, userId string) error {
	args := m.Called(roomId, userId)
	return args.Error(0)
}
func (m *MockJukeboxRepository) GetRoomMembers(roomId string) ([]User, error) {
	args := m.Called(roomId)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockJukeboxRepository) UpsertTrack(params UpsertTrackParams) (Track, error) {
	args := m.Called(params)
	return args.Get(0).(Track), args.Error(1)
}
func (m *MockJukeboxRepository) GetTrackById(id string) (Track, error) {
	args := m.Called(id)
	return args.Get(0).(Track), args.Error(1)
}
func (m *MockJukeboxRepository) CreateSession(roomId string) (Session, error) {
	args := m.Called(roomId)
	return args.Get(0).(Session), args.Error(1)
}
func (m *MockJukeboxRepository) GetSessionById(id string) (Session, error) {
	args := m.Called(id)
	return args.Get(0).(Session), args.Error(1)
}
func (m *MockJukeboxRepository) GetActiveSession(roomId string) (Session, error) {
	args := m.Called(roomId)
	return args.Get(0).(Session), args.Error(1)
}
func (m *MockJukeboxRepository) ListActiveSessions() ([]Session, error) {
	args := m.Called()
	return args.Get(0).([]Session), args.Error(1)
}
func (m *MockJukeboxRepository) EndSession(id string) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockJukeboxRepository) UpdateSessionPlayback(sessionId string, currentTrackId *string, startedAt *time.Time, pausedPositionMs int) error {
	args := m.Called(sessionId, currentTrackId, startedAt, pausedPositionMs)
	return args.Error(0)
}
func (m *MockJukeboxRepository) AddQueueEntry(sessionId, trackId, addedBy string) (QueueEntry, error) {
	args := m.Called(sessionId, trackId, addedBy)
	return args.Get(0).(QueueEntry), args.Error(1)
}
func (m *MockJukeboxRepository) GetNextUnplayed(sessionId string) (QueueEntry, error) {
	args := m.Called(sessionId)
	return args.Get(0).(QueueEntry), args.Error(1)
}
func (m *MockJukeboxRepository) GetQueueEntryById(id string) (QueueEntry, error) {
	args := m.Called(id)
	return args.Get(0).(QueueEntry), args.Error(1)
}
func (m *MockJukeboxRepository) GetQueue(sessionId string) ([]QueueEntry, error) {
	args := m.Called(sessionId)
	return args.Get(0).([]QueueEntry), args.Error(1)
}
func (m *MockJukeboxRepository) GetRecentlyPlayed(sessionId string, limit int) ([]QueueEntry, error) {
	args := m.Called(sessionId, limit)
	return args.Get(0).([]QueueEntry), args.Error(1)
}
func (m *MockJukeboxRepository) MarkPlayed(entryId string, playedAt time.Time) error {
	args := m.Called(entryId, playedAt)
	return args.Error(0)
}
