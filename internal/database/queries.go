package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	sessionColumns = "id, room_id, is_active, current_track_id, current_track_start, paused_position_ms, created_at, ended_at"

	queueEntrySelect = `
		SELECT
			q.id, q.session_id, q.track_id, q.position, q.played, q.played_at, q.created_at,
			t.id, t.provider_id, t.title, t.artist, t.album, t.album_art_url, t.duration_ms,
			a.id, a.display_name, a.profile_image_url
		FROM queue_entries q
		JOIN tracks t ON t.id = q.track_id
		LEFT JOIN accounts a ON a.id = q.added_by
`
)

func (db *PgJukeboxRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (id, display_name, email, password_hash, profile_image_url, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id, display_name, email, profile_image_url, created_at, updated_at",
		uuid.NewString(),
		params.DisplayName,
		params.EmailAddress,
		params.PasswordHash,
		params.ProfileImageURL,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.DisplayName,
		&u.EmailAddress,
		&u.ProfileImageURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgJukeboxRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"UPDATE accounts SET display_name = $2, password_hash = $3, profile_image_url = $4, updated_at = $5 "+
			"WHERE id = $1 RETURNING id, display_name, email, profile_image_url, created_at, updated_at",
		params.UserId,
		params.DisplayName,
		params.PasswordHash,
		params.ProfileImageURL,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.DisplayName,
		&u.EmailAddress,
		&u.ProfileImageURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgJukeboxRepository) GetAccountById(id string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, display_name, email, profile_image_url, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.DisplayName,
		&u.EmailAddress,
		&u.ProfileImageURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgJukeboxRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, display_name, email, password_hash, profile_image_url, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.DisplayName,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.ProfileImageURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

// CreateRoom creates the room, its host membership and an active session
// in one transaction.
func (db *PgJukeboxRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res := tx.QueryRow(
		"INSERT INTO rooms (id, code, name, host_id, is_active, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, TRUE, $5, $5) RETURNING id, code, name, host_id, is_active, created_at, updated_at",
		uuid.NewString(),
		params.Code,
		params.Name,
		params.HostId,
		now,
	)

	var room Room
	err = res.Scan(
		&room.Id,
		&room.Code,
		&room.Name,
		&room.HostId,
		&room.IsActive,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return Room{}, err
	}

	_, err = tx.Exec(
		"INSERT INTO room_members (room_id, user_id, created_at) VALUES ($1, $2, $3)",
		room.Id,
		params.HostId,
		now,
	)
	if err != nil {
		return Room{}, err
	}

	_, err = tx.Exec(
		"INSERT INTO sessions (id, room_id, is_active, paused_position_ms, created_at) VALUES ($1, $2, TRUE, 0, $3)",
		uuid.NewString(),
		room.Id,
		now,
	)
	if err != nil {
		return Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	return room, err
}

func (db *PgJukeboxRepository) GetRoomByCode(code string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, code, name, host_id, is_active, created_at, updated_at FROM rooms "+
			"WHERE code = $1 AND is_active LIMIT 1",
		code,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.Code,
		&room.Name,
		&room.HostId,
		&room.IsActive,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

func (db *PgJukeboxRepository) GetRoomById(id string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, code, name, host_id, is_active, created_at, updated_at FROM rooms "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.Code,
		&room.Name,
		&room.HostId,
		&room.IsActive,
		&room.CreatedAt,
		&room.UpdatedAt,
	)

	return room, err
}

// CloseRoom deactivates the room and ends its active session.
func (db *PgJukeboxRepository) CloseRoom(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	_, err = tx.Exec("UPDATE rooms SET is_active = FALSE, updated_at = $2 WHERE id = $1", id, now)
	if err != nil {
		return err
	}

	_, err = tx.Exec(
		"UPDATE sessions SET is_active = FALSE, ended_at = $2 WHERE room_id = $1 AND is_active",
		id,
		now,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (db *PgJukeboxRepository) AddRoomMember(roomId, userId string) error {
	_, err := db.conn.Exec(
		"INSERT INTO room_members (room_id, user_id, created_at) VALUES ($1, $2, $3) "+
			"ON CONFLICT (room_id, user_id) DO NOTHING",
		roomId,
		userId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgJukeboxRepository) RemoveRoomMember(roomId, userId string) error {
	_, err := db.conn.Exec(
		"DELETE FROM room_members WHERE room_id = $1 AND user_id = $2",
		roomId,
		userId,
	)

	return err
}

func (db *PgJukeboxRepository) GetRoomMembers(roomId string) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT a.id, a.display_name, a.profile_image_url FROM room_members AS m "+
			"JOIN accounts AS a ON m.user_id = a.id WHERE m.room_id = $1 ORDER BY m.created_at",
		roomId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members = make([]User, 0)
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.Id, &u.DisplayName, &u.ProfileImageURL); err != nil {
			break
		}

		members = append(members, u)
	}

	return members, err
}

func (db *PgJukeboxRepository) UpsertTrack(params UpsertTrackParams) (Track, error) {
	res := db.conn.QueryRow(
		"INSERT INTO tracks (id, provider_id, title, artist, album, album_art_url, duration_ms, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8) "+
			"ON CONFLICT (provider_id) DO UPDATE SET title = EXCLUDED.title, artist = EXCLUDED.artist, "+
			"album = EXCLUDED.album, album_art_url = EXCLUDED.album_art_url, duration_ms = EXCLUDED.duration_ms "+
			"RETURNING id, provider_id, title, artist, album, album_art_url, duration_ms, created_at",
		uuid.NewString(),
		params.ProviderId,
		params.Title,
		params.Artist,
		params.Album,
		params.AlbumArtURL,
		params.DurationMs,
		time.Now().UTC(),
	)

	var t Track
	err := res.Scan(
		&t.Id,
		&t.ProviderId,
		&t.Title,
		&t.Artist,
		&t.Album,
		&t.AlbumArtURL,
		&t.DurationMs,
		&t.CreatedAt,
	)

	return t, err
}

func (db *PgJukeboxRepository) GetTrackById(id string) (Track, error) {
	row := db.conn.QueryRow(
		"SELECT id, provider_id, title, artist, album, album_art_url, duration_ms, created_at FROM tracks "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var t Track
	err := row.Scan(
		&t.Id,
		&t.ProviderId,
		&t.Title,
		&t.Artist,
		&t.Album,
		&t.AlbumArtURL,
		&t.DurationMs,
		&t.CreatedAt,
	)

	return t, err
}

func (db *PgJukeboxRepository) CreateSession(roomId string) (Session, error) {
	res := db.conn.QueryRow(
		"INSERT INTO sessions (id, room_id, is_active, paused_position_ms, created_at) "+
			"VALUES ($1, $2, TRUE, 0, $3) RETURNING "+sessionColumns,
		uuid.NewString(),
		roomId,
		time.Now().UTC(),
	)

	return scanSession(res)
}

func (db *PgJukeboxRepository) GetSessionById(id string) (Session, error) {
	row := db.conn.QueryRow(
		"SELECT "+sessionColumns+" FROM sessions WHERE id = $1 LIMIT 1",
		id,
	)

	return scanSession(row)
}

func (db *PgJukeboxRepository) GetActiveSession(roomId string) (Session, error) {
	row := db.conn.QueryRow(
		"SELECT "+sessionColumns+" FROM sessions WHERE room_id = $1 AND is_active LIMIT 1",
		roomId,
	)

	return scanSession(row)
}

// ListActiveSessions returns active sessions with a non-null
// current_track_start, i.e. the ones that were playing when the process
// last wrote state. Used by crash recovery.
func (db *PgJukeboxRepository) ListActiveSessions() ([]Session, error) {
	rows, err := db.conn.Query(
		"SELECT " + sessionColumns + " FROM sessions WHERE is_active AND current_track_start IS NOT NULL",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err = rows.Scan(
			&s.Id,
			&s.RoomId,
			&s.IsActive,
			&s.CurrentTrackId,
			&s.CurrentTrackStart,
			&s.PausedPositionMs,
			&s.CreatedAt,
			&s.EndedAt,
		); err != nil {
			break
		}

		sessions = append(sessions, s)
	}

	return sessions, err
}

func (db *PgJukeboxRepository) EndSession(id string) error {
	_, err := db.conn.Exec(
		"UPDATE sessions SET is_active = FALSE, ended_at = $2 WHERE id = $1",
		id,
		time.Now().UTC(),
	)

	return err
}

func (db *PgJukeboxRepository) UpdateSessionPlayback(sessionId string, currentTrackId *string, startedAt *time.Time, pausedPositionMs int) error {
	res, err := db.conn.Exec(
		"UPDATE sessions SET current_track_id = $2, current_track_start = $3, paused_position_ms = $4 WHERE id = $1",
		sessionId,
		currentTrackId,
		startedAt,
		pausedPositionMs,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// AddQueueEntry appends the track at the next free position for the
// session. Positions only ever grow; gaps left by other writers are fine.
func (db *PgJukeboxRepository) AddQueueEntry(sessionId, trackId, addedBy string) (QueueEntry, error) {
	addedByCol := sql.NullString{String: addedBy, Valid: addedBy != ""}
	res := db.conn.QueryRow(
		"INSERT INTO queue_entries (id, session_id, track_id, position, added_by, played, created_at) "+
			"SELECT $1, $2, $3, COALESCE(MAX(position) + 1, 0), $4, FALSE, $5 FROM queue_entries WHERE session_id = $2 "+
			"RETURNING id",
		uuid.NewString(),
		sessionId,
		trackId,
		addedByCol,
		time.Now().UTC(),
	)

	var id string
	if err := res.Scan(&id); err != nil {
		return QueueEntry{}, err
	}

	return db.GetQueueEntryById(id)
}

func (db *PgJukeboxRepository) GetNextUnplayed(sessionId string) (QueueEntry, error) {
	row := db.conn.QueryRow(
		queueEntrySelect+" WHERE q.session_id = $1 AND NOT q.played ORDER BY q.position LIMIT 1",
		sessionId,
	)

	return scanQueueEntry(row)
}

func (db *PgJukeboxRepository) GetQueueEntryById(id string) (QueueEntry, error) {
	row := db.conn.QueryRow(
		queueEntrySelect+" WHERE q.id = $1 LIMIT 1",
		id,
	)

	return scanQueueEntry(row)
}

func (db *PgJukeboxRepository) GetQueue(sessionId string) ([]QueueEntry, error) {
	rows, err := db.conn.Query(
		queueEntrySelect+" WHERE q.session_id = $1 AND NOT q.played ORDER BY q.position",
		sessionId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanQueueEntries(rows)
}

func (db *PgJukeboxRepository) GetRecentlyPlayed(sessionId string, limit int) ([]QueueEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(
		queueEntrySelect+" WHERE q.session_id = $1 AND q.played ORDER BY q.played_at DESC LIMIT $2",
		sessionId,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanQueueEntries(rows)
}

func (db *PgJukeboxRepository) MarkPlayed(entryId string, playedAt time.Time) error {
	res, err := db.conn.Exec(
		"UPDATE queue_entries SET played = TRUE, played_at = $2 WHERE id = $1",
		entryId,
		playedAt,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var s Session
	err := row.Scan(
		&s.Id,
		&s.RoomId,
		&s.IsActive,
		&s.CurrentTrackId,
		&s.CurrentTrackStart,
		&s.PausedPositionMs,
		&s.CreatedAt,
		&s.EndedAt,
	)

	return s, err
}

func scanQueueEntry(row rowScanner) (QueueEntry, error) {
	var (
		q               QueueEntry
		addedById       sql.NullString
		addedByName     sql.NullString
		addedByImageURL sql.NullString
	)

	err := row.Scan(
		&q.Id,
		&q.SessionId,
		&q.TrackId,
		&q.Position,
		&q.Played,
		&q.PlayedAt,
		&q.CreatedAt,
		&q.Track.Id,
		&q.Track.ProviderId,
		&q.Track.Title,
		&q.Track.Artist,
		&q.Track.Album,
		&q.Track.AlbumArtURL,
		&q.Track.DurationMs,
		&addedById,
		&addedByName,
		&addedByImageURL,
	)
	if err != nil {
		return QueueEntry{}, err
	}

	if addedById.Valid {
		q.AddedBy = &User{
			Id:              addedById.String,
			DisplayName:     addedByName.String,
			ProfileImageURL: addedByImageURL.String,
		}
	}

	return q, nil
}

func scanQueueEntries(rows *sql.Rows) ([]QueueEntry, error) {
	var entries = make([]QueueEntry, 0)
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return entries, nil
}
