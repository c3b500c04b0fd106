package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmelton/go-jukebox/internal/config"
	"github.com/dmelton/go-jukebox/internal/database"
	"github.com/dmelton/go-jukebox/internal/playback"
	"github.com/dmelton/go-jukebox/internal/stats"
	"github.com/dmelton/go-jukebox/internal/testutil"
	"github.com/dmelton/go-jukebox/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// findCookie is a helper function to find a cookie by name in the response recorder.
// It returns the cookie if found, or nil if not found.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func newTestApp(t *testing.T, mockRepo *database.MockJukeboxRepository) *JukeboxApp {
	st := &stats.MockStatsUpdater{}
	st.On("Incr", mock.Anything).Maybe()
	st.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	fanout := playback.NewFanout(logger, st)
	coordinator := playback.NewCoordinator(logger, mockRepo, fanout, st)

	return NewJukeboxApp(http.NewServeMux(), logger, coordinator, fanout, mockRepo, st, &config.Config{
		SigningKey: []byte("test-signing-key"),
	})
}

func authedRequest(method, target string, body *bytes.Buffer, userId string) *http.Request {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(WithUserId(req.Context(), userId))
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewBuffer(data)
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockJukeboxRepository{}
			defer mockRepo.AssertExpectations(t)

			mockRepo.On("Ping").Return(tc.mockErr).Once()
			app := newTestApp(t, mockRepo)

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			app.healthCheck(rr, req)

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code)
			} else {
				assert.Equal(t, http.StatusOK, rr.Code)
				assert.Equal(t, "OK", rr.Body.String())
			}
		})
	}
}

func TestCreateAccountHandler(t *testing.T) {
	expectedUser := database.User{
		Id:           "user-1",
		DisplayName:  "newuser",
		EmailAddress: "newuser@example.com",
		PasswordHash: "hashedpassword",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	tcases := []struct {
		name         string
		body         any
		mockUser     database.User
		mockErr      error
		expectedCode int
	}{
		{
			name: "successfully creates a new account",
			body: RegisterRequest{
				DisplayName: expectedUser.DisplayName,
				Email:       expectedUser.EmailAddress,
				Password:    "password",
			},
			mockUser:     expectedUser,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "fails with invalid json body",
			body:         "invalid json",
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "fails with missing display name",
			body: RegisterRequest{
				Email:    expectedUser.EmailAddress,
				Password: "password",
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "fails with missing password",
			body: RegisterRequest{
				DisplayName: expectedUser.DisplayName,
				Email:       expectedUser.EmailAddress,
			},
			expectedCode: http.StatusBadRequest,
		},
		{
			name: "fails with db error",
			body: RegisterRequest{
				DisplayName: expectedUser.DisplayName,
				Email:       expectedUser.EmailAddress,
				Password:    "password",
			},
			mockErr:      errors.New("db error"),
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockJukeboxRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.mockUser != (database.User{}) || tc.mockErr != nil {
				regReq := tc.body.(RegisterRequest)
				mockRepo.On("CreateAccount", mock.MatchedBy(func(params database.CreateAccountParams) bool {
					return params.DisplayName == regReq.DisplayName &&
						params.EmailAddress == regReq.Email &&
						verifyPassword(params.PasswordHash, regReq.Password)
				})).Return(tc.mockUser, tc.mockErr).Once()
			}

			app := newTestApp(t, mockRepo)

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, tc.body))
			app.createAccount(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)

			if tc.expectedCode == http.StatusCreated {
				var u types.User
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&u))
				assert.Equal(t, expectedUser.Id, u.Id)
				assert.Equal(t, expectedUser.DisplayName, u.DisplayName)
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	pwdHash, err := hashPassword("password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	dbUser := database.User{
		Id:           "user-1",
		DisplayName:  "test",
		EmailAddress: "test@example.com",
		PasswordHash: pwdHash,
	}

	tcases := []struct {
		name         string
		body         LoginRequest
		mockUser     database.User
		mockErr      error
		expectedCode int
		expectCookie bool
	}{
		{
			name:         "successful login sets cookie",
			body:         LoginRequest{Email: dbUser.EmailAddress, Password: "password"},
			mockUser:     dbUser,
			expectedCode: http.StatusOK,
			expectCookie: true,
		},
		{
			name:         "wrong password",
			body:         LoginRequest{Email: dbUser.EmailAddress, Password: "wrong"},
			mockUser:     dbUser,
			expectedCode: http.StatusUnauthorized,
		},
		{
			name:         "unknown email",
			body:         LoginRequest{Email: "missing@example.com", Password: "password"},
			mockErr:      sql.ErrNoRows,
			expectedCode: http.StatusNotFound,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockJukeboxRepository{}
			defer mockRepo.AssertExpectations(t)

			mockRepo.On("GetAccountByEmail", tc.body.Email).Return(tc.mockUser, tc.mockErr).Once()

			app := newTestApp(t, mockRepo)

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, tc.body))
			app.login(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)

			cookie := findCookie(rr, tokenCookieKey)
			if tc.expectCookie {
				assert.NotNil(t, cookie)
				assert.NotEmpty(t, cookie.Value)
			} else {
				assert.Nil(t, cookie)
			}
		})
	}
}

func Test_createRoom(t *testing.T) {
	mockRoom := database.Room{
		Id:       "room-1",
		Code:     "EoGKUXPHgz",
		Name:     "Test Room",
		HostId:   "user-1",
		IsActive: true,
	}

	tcases := []struct {
		name         string
		body         any
		mockRoom     database.Room
		mockErr      error
		expectedCode int
	}{
		{
			name:         "successfully creates a room",
			body:         CreateRoomRequest{Name: mockRoom.Name},
			mockRoom:     mockRoom,
			expectedCode: http.StatusCreated,
		},
		{
			name:         "fails with invalid json body",
			body:         "invalid json",
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "fails with missing name",
			body:         CreateRoomRequest{},
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "fails with db error",
			body:         CreateRoomRequest{Name: mockRoom.Name},
			mockErr:      errors.New("db error"),
			expectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockJukeboxRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.mockRoom != (database.Room{}) || tc.mockErr != nil {
				mockRepo.On("CreateRoom", mock.MatchedBy(func(params database.CreateRoomParams) bool {
					return params.Name == mockRoom.Name &&
						params.HostId == "user-1" &&
						params.Code != ""
				})).Return(tc.mockRoom, tc.mockErr).Once()
			}

			app := newTestApp(t, mockRepo)

			rr := httptest.NewRecorder()
			req := authedRequest(http.MethodPost, "/api/rooms", jsonBody(t, tc.body), "user-1")
			app.createRoom(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)

			if tc.expectedCode == http.StatusCreated {
				var room types.Room
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&room))
				assert.Equal(t, mockRoom.Code, room.Code)
				assert.Equal(t, mockRoom.HostId, room.HostId)
			}
		})
	}
}

func Test_getRoom(t *testing.T) {
	mockRoom := database.Room{
		Id:       "room-1",
		Code:     "EoGKUXPHgz",
		Name:     "Test Room",
		HostId:   "user-1",
		IsActive: true,
	}

	t.Run("returns room with members", func(t *testing.T) {
		mockRepo := &database.MockJukeboxRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByCode", mockRoom.Code).Return(mockRoom, nil).Once()
		mockRepo.On("GetRoomMembers", mockRoom.Id).Return([]database.User{
			{Id: "user-1", DisplayName: "host"},
			{Id: "user-2", DisplayName: "guest"},
		}, nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/rooms?code="+mockRoom.Code, nil, "user-1")
		app.getRoom(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var room types.Room
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&room))
		assert.Equal(t, mockRoom.Code, room.Code)
		assert.Len(t, room.Members, 2)
		assert.Equal(t, 0, room.ConnectionCount)
	})

	t.Run("missing code", func(t *testing.T) {
		app := newTestApp(t, &database.MockJukeboxRepository{})

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/rooms", nil, "user-1")
		app.getRoom(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown code", func(t *testing.T) {
		mockRepo := &database.MockJukeboxRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByCode", "nope").Return(database.Room{}, sql.ErrNoRows).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/rooms?code=nope", nil, "user-1")
		app.getRoom(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func Test_closeRoom(t *testing.T) {
	mockRoom := database.Room{
		Id:       "room-1",
		Code:     "EoGKUXPHgz",
		Name:     "Test Room",
		HostId:   "user-1",
		IsActive: true,
	}

	t.Run("host closes room", func(t *testing.T) {
		mockRepo := &database.MockJukeboxRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByCode", mockRoom.Code).Return(mockRoom, nil).Once()
		mockRepo.On("GetActiveSession", mockRoom.Id).Return(database.Session{Id: "s1", RoomId: mockRoom.Id, IsActive: true}, nil).Once()
		mockRepo.On("CloseRoom", mockRoom.Id).Return(nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodDelete, "/api/rooms?code="+mockRoom.Code, nil, "user-1")
		app.closeRoom(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("non-host is forbidden", func(t *testing.T) {
		mockRepo := &database.MockJukeboxRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByCode", mockRoom.Code).Return(mockRoom, nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodDelete, "/api/rooms?code="+mockRoom.Code, nil, "user-2")
		app.closeRoom(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		mockRepo.AssertNotCalled(t, "CloseRoom", mock.Anything)
	})
}

func Test_joinRoom(t *testing.T) {
	mockRoom := database.Room{
		Id:       "room-1",
		Code:     "EoGKUXPHgz",
		Name:     "Test Room",
		HostId:   "user-1",
		IsActive: true,
	}

	t.Run("joins an active room", func(t *testing.T) {
		mockRepo := &database.MockJukeboxRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByCode", mockRoom.Code).Return(mockRoom, nil).Once()
		mockRepo.On("AddRoomMember", mockRoom.Id, "user-2").Return(nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/api/rooms/join?code="+mockRoom.Code, nil, "user-2")
		app.joinRoom(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("closed room conflicts", func(t *testing.T) {
		closed := mockRoom
		closed.IsActive = false

		mockRepo := &database.MockJukeboxRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByCode", closed.Code).Return(closed, nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodPost, "/api/rooms/join?code="+closed.Code, nil, "user-2")
		app.joinRoom(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		mockRepo.AssertNotCalled(t, "AddRoomMember", mock.Anything, mock.Anything)
	})
}

func Test_addToQueue(t *testing.T) {
	mockRoom := database.Room{
		Id:       "room-1",
		Code:     "EoGKUXPHgz",
		Name:     "Test Room",
		HostId:   "user-1",
		IsActive: true,
	}

	trackId := "track-1"
	startedAt := time.Now().UTC().Add(-time.Minute)
	playingSession := database.Session{
		Id:                "s1",
		RoomId:            mockRoom.Id,
		IsActive:          true,
		CurrentTrackId:    &trackId,
		CurrentTrackStart: &startedAt,
	}

	mockTrack := database.Track{
		Id:         trackId,
		ProviderId: "provider-track-1",
		Title:      "Test Track",
		Artist:     "Test Artist",
		DurationMs: 180_000,
	}

	mockEntry := database.QueueEntry{
		Id:        "e1",
		SessionId: playingSession.Id,
		TrackId:   mockTrack.Id,
		Track:     mockTrack,
	}

	req := AddTrackRequest{
		ProviderId: mockTrack.ProviderId,
		Title:      mockTrack.Title,
		Artist:     mockTrack.Artist,
		DurationMs: mockTrack.DurationMs,
	}

	t.Run("adds a track to a playing session", func(t *testing.T) {
		mockRepo := &database.MockJukeboxRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByCode", mockRoom.Code).Return(mockRoom, nil).Once()
		mockRepo.On("GetActiveSession", mockRoom.Id).Return(playingSession, nil).Once()
		mockRepo.On("UpsertTrack", mock.MatchedBy(func(params database.UpsertTrackParams) bool {
			return params.ProviderId == req.ProviderId && params.DurationMs == req.DurationMs
		})).Return(mockTrack, nil).Once()
		mockRepo.On("AddQueueEntry", playingSession.Id, mockTrack.Id, "user-2").Return(mockEntry, nil).Once()
		mockRepo.On("GetQueue", playingSession.Id).Return([]database.QueueEntry{mockEntry}, nil).Once()
		mockRepo.On("GetRecentlyPlayed", playingSession.Id, 0).Return([]database.QueueEntry{}, nil).Once()
		// playback is untouched for an already playing session
		mockRepo.On("GetSessionById", playingSession.Id).Return(playingSession, nil).Once()
		mockRepo.On("GetTrackById", trackId).Return(mockTrack, nil).Once()

		app := newTestApp(t, mockRepo)

		rr := httptest.NewRecorder()
		httpReq := authedRequest(http.MethodPost, "/api/queue?code="+mockRoom.Code, jsonBody(t, req), "user-2")
		app.addToQueue(rr, httpReq)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var item types.QueueItem
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&item))
		assert.Equal(t, mockEntry.Id, item.Id)
		assert.Equal(t, mockTrack.Title, item.Title)

		mockRepo.AssertNotCalled(t, "UpdateSessionPlayback", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects invalid track", func(t *testing.T) {
		app := newTestApp(t, &database.MockJukeboxRepository{})

		rr := httptest.NewRecorder()
		httpReq := authedRequest(http.MethodPost, "/api/queue?code="+mockRoom.Code,
			jsonBody(t, AddTrackRequest{Title: "no provider"}), "user-2")
		app.addToQueue(rr, httpReq)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func Test_getQueue(t *testing.T) {
	mockRoom := database.Room{Id: "room-1", Code: "EoGKUXPHgz", IsActive: true}
	session := database.Session{Id: "s1", RoomId: mockRoom.Id, IsActive: true}

	entry := database.QueueEntry{
		Id:        "e1",
		SessionId: session.Id,
		TrackId:   "track-1",
		Track:     database.Track{Id: "track-1", Title: "Test Track", DurationMs: 180_000},
	}

	mockRepo := &database.MockJukeboxRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetRoomByCode", mockRoom.Code).Return(mockRoom, nil).Once()
	mockRepo.On("GetActiveSession", mockRoom.Id).Return(session, nil).Once()
	mockRepo.On("GetQueue", session.Id).Return([]database.QueueEntry{entry}, nil).Once()
	mockRepo.On("GetRecentlyPlayed", session.Id, 0).Return([]database.QueueEntry{}, nil).Once()

	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodGet, "/api/queue?code="+mockRoom.Code, nil, "user-1")
	app.getQueue(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp playback.QueueUpdateData
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Len(t, resp.Queue, 1)
	assert.Empty(t, resp.RecentlyPlayed)
}

func Test_startPlayback_EmptyQueue(t *testing.T) {
	mockRoom := database.Room{Id: "room-1", Code: "EoGKUXPHgz", HostId: "user-1", IsActive: true}
	session := database.Session{Id: "s1", RoomId: mockRoom.Id, IsActive: true}

	mockRepo := &database.MockJukeboxRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetRoomByCode", mockRoom.Code).Return(mockRoom, nil).Once()
	mockRepo.On("GetActiveSession", mockRoom.Id).Return(session, nil).Once()
	mockRepo.On("GetSessionById", session.Id).Return(session, nil)
	mockRepo.On("GetNextUnplayed", session.Id).Return(database.QueueEntry{}, sql.ErrNoRows).Once()
	mockRepo.On("UpdateSessionPlayback", session.Id, (*string)(nil), (*time.Time)(nil), 0).Return(nil).Once()

	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/playback/play?code="+mockRoom.Code, nil, "user-1")
	app.startPlayback(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var state types.PlaybackState
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&state))
	assert.False(t, state.IsPlaying)
	assert.Nil(t, state.CurrentTrack)
}

func Test_startPlayback_NonHostForbidden(t *testing.T) {
	mockRoom := database.Room{Id: "room-1", Code: "EoGKUXPHgz", HostId: "user-1", IsActive: true}

	mockRepo := &database.MockJukeboxRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetRoomByCode", mockRoom.Code).Return(mockRoom, nil).Once()

	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/playback/play?code="+mockRoom.Code, nil, "user-2")
	app.startPlayback(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	mockRepo.AssertNotCalled(t, "GetSessionById", mock.Anything)
}

func Test_play_ResumesPausedSession(t *testing.T) {
	mockRoom := database.Room{Id: "room-1", Code: "EoGKUXPHgz", HostId: "user-1", IsActive: true}
	trackId := "track-1"
	pausedSession := database.Session{
		Id:               "s1",
		RoomId:           mockRoom.Id,
		IsActive:         true,
		CurrentTrackId:   &trackId,
		PausedPositionMs: 15_000,
	}

	entry := database.QueueEntry{
		Id:        "e1",
		SessionId: pausedSession.Id,
		TrackId:   trackId,
		Track:     database.Track{Id: trackId, Title: "Test Track", DurationMs: 180_000},
	}

	mockRepo := &database.MockJukeboxRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetRoomByCode", mockRoom.Code).Return(mockRoom, nil).Once()
	mockRepo.On("GetActiveSession", mockRoom.Id).Return(pausedSession, nil).Once()
	mockRepo.On("GetSessionById", pausedSession.Id).Return(pausedSession, nil)
	mockRepo.On("GetQueue", pausedSession.Id).Return([]database.QueueEntry{entry}, nil).Once()
	mockRepo.On("GetQueueEntryById", entry.Id).Return(entry, nil).Once()
	mockRepo.On("UpdateSessionPlayback", pausedSession.Id,
		mock.MatchedBy(func(p *string) bool { return p != nil && *p == trackId }),
		mock.MatchedBy(func(ts *time.Time) bool { return ts != nil }), 0).Return(nil).Once()

	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/playback/play?code="+mockRoom.Code, nil, "user-1")
	app.startPlayback(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var state types.PlaybackState
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&state))
	assert.True(t, state.IsPlaying)
	assert.Equal(t, 15_000, state.PositionMs)

	app.coordinator.ReleaseSession(pausedSession.Id)
}

func Test_getPlaybackState(t *testing.T) {
	mockRoom := database.Room{Id: "room-1", Code: "EoGKUXPHgz", IsActive: true}
	trackId := "track-1"
	session := database.Session{
		Id:               "s1",
		RoomId:           mockRoom.Id,
		IsActive:         true,
		CurrentTrackId:   &trackId,
		PausedPositionMs: 30_000,
	}

	mockRepo := &database.MockJukeboxRepository{}
	defer mockRepo.AssertExpectations(t)

	mockRepo.On("GetRoomByCode", mockRoom.Code).Return(mockRoom, nil).Once()
	mockRepo.On("GetActiveSession", mockRoom.Id).Return(session, nil).Once()
	mockRepo.On("GetSessionById", session.Id).Return(session, nil).Once()
	mockRepo.On("GetTrackById", trackId).Return(database.Track{Id: trackId, Title: "Test Track", DurationMs: 180_000}, nil).Once()

	app := newTestApp(t, mockRepo)

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodGet, "/api/playback?code="+mockRoom.Code, nil, "user-1")
	app.getPlaybackState(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var state types.PlaybackState
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&state))
	assert.False(t, state.IsPlaying)
	assert.Equal(t, 30_000, state.PositionMs)
	assert.Equal(t, trackId, state.CurrentTrack.Id)
}
