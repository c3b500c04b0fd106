package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/dmelton/go-jukebox/internal/database"
	"github.com/dmelton/go-jukebox/internal/playback"
	"github.com/dmelton/go-jukebox/internal/types"
	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email           string `json:"email"`
	DisplayName     string `json:"display_name"`
	Password        string `json:"password"`
	ProfileImageURL string `json:"profile_image_url"`
}

type UpdateAccountRequest struct {
	DisplayName     string `json:"display_name"`
	Password        string `json:"password"`
	ProfileImageURL string `json:"profile_image_url"`
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

type AddTrackRequest struct {
	ProviderId  string `json:"provider_id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	AlbumArtURL string `json:"album_art_url"`
	DurationMs  int    `json:"duration_ms"`
}

func (s *JukeboxApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func userFromDB(u database.User) types.User {
	return types.User{
		Id:              u.Id,
		DisplayName:     u.DisplayName,
		EmailAddress:    u.EmailAddress,
		ProfileImageURL: u.ProfileImageURL,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func roomFromDB(r database.Room) types.Room {
	return types.Room{
		Id:        r.Id,
		Code:      r.Code,
		Name:      r.Name,
		HostId:    r.HostId,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// roomByCode resolves the room named by the request's code query param.
func (s *JukeboxApp) roomByCode(r *http.Request) (database.Room, *ApiError) {
	code := r.URL.Query().Get("code")
	if code == "" {
		return database.Room{}, NewBadRequestError()
	}

	room, err := s.db.GetRoomByCode(code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Room{}, NewNotFoundError()
		}
		return database.Room{}, NewInternalServerError(err)
	}

	return room, nil
}

func (s *JukeboxApp) activeSession(roomId string) (database.Session, *ApiError) {
	session, err := s.db.GetActiveSession(roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Session{}, NewNotFoundError()
		}
		return database.Session{}, NewInternalServerError(err)
	}

	return session, nil
}

func (s *JukeboxApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *JukeboxApp) createAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.DisplayName == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := hashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateAccountParams{
		DisplayName:     req.DisplayName,
		EmailAddress:    req.Email,
		PasswordHash:    pwdHash,
		ProfileImageURL: req.ProfileImageURL,
	}

	newUser, err := s.db.CreateAccount(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, userFromDB(newUser))
}

func (s *JukeboxApp) account(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userId, ok := UserId(r.Context())
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		user, err := s.db.GetAccountById(userId)
		if err != nil {
			var errResp *ApiError
			if errors.Is(err, sql.ErrNoRows) {
				errResp = NewNotFoundError()
			} else {
				errResp = NewInternalServerError(err)
			}
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, userFromDB(user))
	case http.MethodPut:
		userId, ok := UserId(r.Context())
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		curUser, err := s.db.GetAccountById(userId)
		if err != nil {
			var errResp *ApiError
			if errors.Is(err, sql.ErrNoRows) {
				errResp = NewNotFoundError()
			} else {
				errResp = NewInternalServerError(err)
			}
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		var updateAccountReq UpdateAccountRequest
		err = json.NewDecoder(r.Body).Decode(&updateAccountReq)
		if err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		if updateAccountReq.DisplayName == "" || updateAccountReq.Password == "" {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		pwdHash, err := hashPassword(updateAccountReq.Password)
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		params := database.UpdateAccountParams{
			UserId:          curUser.Id,
			DisplayName:     updateAccountReq.DisplayName,
			PasswordHash:    pwdHash,
			ProfileImageURL: updateAccountReq.ProfileImageURL,
		}

		dbUser, err := s.db.UpdateAccount(params)
		if err != nil {
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		s.writeJson(w, http.StatusOK, userFromDB(dbUser))
	default:
		errResp := NewMethodNotAllowedError()
		s.writeJson(w, errResp.StatusCode, errResp)
	}
}

func (s *JukeboxApp) session(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, userFromDB(user))
}

func (s *JukeboxApp) login(w http.ResponseWriter, r *http.Request) {
	var lr LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&lr); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if lr.Email == "" || lr.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountByEmail(lr.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !verifyPassword(dbUser.PasswordHash, lr.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	u := userFromDB(dbUser)

	token, err := s.createJwtForSession(u, defaultJwtExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, createJwtCookie(token, defaultJwtExpiration))

	s.writeJson(w, http.StatusOK, u)
}

func (s *JukeboxApp) logout(w http.ResponseWriter, _ *http.Request) {
	// instruct browser to delete cookie by overwriting it with an expired token
	http.SetCookie(w, createJwtCookie("", time.Duration(time.Unix(0, 0).Unix())))
	w.WriteHeader(http.StatusNoContent)
}

func (s *JukeboxApp) createRoom(w http.ResponseWriter, r *http.Request) {
	var createRoomReq CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&createRoomReq); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if createRoomReq.Name == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	code, err := shortid.Generate()
	if err != nil {
		s.log.Print("generate room code:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateRoomParams{
		Name:   createRoomReq.Name,
		Code:   code,
		HostId: userId,
	}

	newRoom, err := s.db.CreateRoom(params)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, roomFromDB(newRoom))
}

func (s *JukeboxApp) getRoom(w http.ResponseWriter, r *http.Request) {
	room, apiErr := s.roomByCode(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	members, err := s.db.GetRoomMembers(room.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	resp := roomFromDB(room)
	for _, m := range members {
		resp.Members = append(resp.Members, userFromDB(m))
	}
	resp.ConnectionCount = s.fanout.ConnectionCount(room.Id)

	s.writeJson(w, http.StatusOK, resp)
}

func (s *JukeboxApp) closeRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, apiErr := s.roomByCode(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	// only the host can close a room
	if room.HostId != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	session, apiErr := s.activeSession(room.Id)
	if apiErr == nil {
		s.coordinator.ReleaseSession(session.Id)
	}

	if err := s.db.CloseRoom(room.Id); err != nil {
		s.log.Println("close room:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.fanout.BroadcastToRoom(room.Id, playback.NewNotificationMessage("The room has been closed by the host.", "warning"))

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *JukeboxApp) joinRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, apiErr := s.roomByCode(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	if !room.IsActive {
		errResp := NewConflictError("room is closed")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.AddRoomMember(room.Id, userId); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, roomFromDB(room))
}

func (s *JukeboxApp) leaveRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, apiErr := s.roomByCode(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	if err := s.db.RemoveRoomMember(room.Id, userId); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *JukeboxApp) addToQueue(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req AddTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.ProviderId == "" || req.Title == "" || req.DurationMs <= 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, apiErr := s.roomByCode(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	session, apiErr := s.activeSession(room.Id)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	track, err := s.db.UpsertTrack(database.UpsertTrackParams{
		ProviderId:  req.ProviderId,
		Title:       req.Title,
		Artist:      req.Artist,
		Album:       req.Album,
		AlbumArtURL: req.AlbumArtURL,
		DurationMs:  req.DurationMs,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	entry, err := s.db.AddQueueEntry(session.Id, track.Id, userId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.broadcastQueueUpdate(room.Id, session.Id)

	// auto-start a stopped session now that the queue is non-empty
	if _, err := s.coordinator.OnTrackEnqueued(session.Id); err != nil {
		s.log.Println("on track enqueued:", err)
	}

	s.writeJson(w, http.StatusCreated, playback.QueueItems([]database.QueueEntry{entry})[0])
}

func (s *JukeboxApp) getQueue(w http.ResponseWriter, r *http.Request) {
	room, apiErr := s.roomByCode(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	session, apiErr := s.activeSession(room.Id)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	queue, err := s.db.GetQueue(session.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	recent, err := s.db.GetRecentlyPlayed(session.Id, 0)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, playback.QueueUpdateData{
		Queue:          playback.QueueItems(queue),
		RecentlyPlayed: playback.QueueItems(recent),
	})
}

func (s *JukeboxApp) broadcastQueueUpdate(roomId, sessionId string) {
	queue, err := s.db.GetQueue(sessionId)
	if err != nil {
		s.log.Println("get queue:", err)
		return
	}

	recent, err := s.db.GetRecentlyPlayed(sessionId, 0)
	if err != nil {
		s.log.Println("get recently played:", err)
		return
	}

	s.fanout.BroadcastToRoom(roomId, playback.NewQueueUpdateMessage(
		playback.QueueItems(queue), playback.QueueItems(recent)))
}

func (s *JukeboxApp) getPlaybackState(w http.ResponseWriter, r *http.Request) {
	s.playbackOp(w, r, false, s.coordinator.GetPlaybackState)
}

func (s *JukeboxApp) startPlayback(w http.ResponseWriter, r *http.Request) {
	s.playbackOp(w, r, true, s.play)
}

func (s *JukeboxApp) pausePlayback(w http.ResponseWriter, r *http.Request) {
	s.playbackOp(w, r, true, s.coordinator.PausePlayback)
}

func (s *JukeboxApp) resumePlayback(w http.ResponseWriter, r *http.Request) {
	s.playbackOp(w, r, true, s.coordinator.ResumePlayback)
}

func (s *JukeboxApp) skipToNext(w http.ResponseWriter, r *http.Request) {
	s.playbackOp(w, r, true, s.coordinator.SkipToNext)
}

// play resumes a session that is paused mid-track; anything else is an
// explicit start, which re-anchors even when the track is already playing.
func (s *JukeboxApp) play(sessionId string) (types.PlaybackState, error) {
	session, err := s.db.GetSessionById(sessionId)
	if err != nil {
		return types.PlaybackState{}, err
	}

	if session.CurrentTrackId != nil && session.CurrentTrackStart == nil {
		return s.coordinator.ResumePlayback(sessionId)
	}

	return s.coordinator.StartPlayback(sessionId)
}

// playbackOp resolves the room's active session and applies a coordinator
// transition, writing the canonical state shape back to the caller.
// Transitions are reserved for the room host; reading state is not.
func (s *JukeboxApp) playbackOp(w http.ResponseWriter, r *http.Request, hostOnly bool, op func(string) (types.PlaybackState, error)) {
	room, apiErr := s.roomByCode(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	if hostOnly {
		userId, ok := UserId(r.Context())
		if !ok {
			errResp := NewUnauthorizedError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		if room.HostId != userId {
			errResp := NewForbiddenError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	session, apiErr := s.activeSession(room.Id)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	state, err := op(session.Id)
	if err != nil {
		s.log.Println("playback operation:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, state)
}

func (s *JukeboxApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbUser, err := s.db.GetAccountById(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, apiErr := s.roomByCode(r)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	members, err := s.db.GetRoomMembers(room.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !slices.ContainsFunc(members, func(m database.User) bool { return m.Id == dbUser.Id }) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	session, apiErr := s.activeSession(room.Id)
	if apiErr != nil {
		s.writeJson(w, apiErr.StatusCode, apiErr)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	user := userFromDB(dbUser)
	client := playback.NewClient(user, room.Id, conn, s.fanout, s.log)
	s.fanout.Connect(client, room.Id)

	s.fanout.SendPersonal(client, playback.NewConnectedMessage(room.Id, room.Code, &user))

	// sync the new observer before announcing them
	if state, err := s.coordinator.GetPlaybackState(session.Id); err == nil {
		s.fanout.SendPersonal(client, playback.NewPlaybackStateMessage(state))
	} else {
		s.log.Println("get playback state:", err)
	}

	queue, qErr := s.db.GetQueue(session.Id)
	recent, rErr := s.db.GetRecentlyPlayed(session.Id, 0)
	if qErr == nil && rErr == nil {
		s.fanout.SendPersonal(client, playback.NewQueueUpdateMessage(
			playback.QueueItems(queue), playback.QueueItems(recent)))
	}

	s.fanout.BroadcastToRoom(room.Id, playback.NewMemberJoinedMessage(user, s.fanout.ConnectionCount(room.Id)))

	go client.Write()
	go client.Read()
}
