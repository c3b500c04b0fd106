package playback

import (
	"time"

	"github.com/dmelton/go-jukebox/internal/types"
)

// Message kinds pushed to room observers. The envelope is always
// {"type": ..., "data": ...}; Data is one of the payload structs below.
const (
	MessageTypeConnected     = "connected"
	MessageTypePlaybackState = "playback_state"
	MessageTypeQueueUpdate   = "queue_update"
	MessageTypeMemberJoined  = "member_joined"
	MessageTypeMemberLeft    = "member_left"
	MessageTypeNotification  = "notification"
	MessageTypePong          = "pong"
)

type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type ConnectedData struct {
	RoomId  string      `json:"room_id"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	User    *types.User `json:"user"`
}

type QueueUpdateData struct {
	Queue          []types.QueueItem `json:"queue"`
	RecentlyPlayed []types.QueueItem `json:"recently_played"`
}

type MemberEventData struct {
	UserId          string `json:"user_id"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	ConnectionCount int    `json:"connection_count"`
}

type NotificationData struct {
	Message string `json:"message"`
	Level   string `json:"level"`
}

func NewConnectedMessage(roomId, code string, user *types.User) *Message {
	return &Message{
		Type: MessageTypeConnected,
		Data: ConnectedData{
			RoomId:  roomId,
			Code:    code,
			Message: "Connected to room",
			User:    user,
		},
	}
}

func NewPlaybackStateMessage(state types.PlaybackState) *Message {
	return &Message{
		Type: MessageTypePlaybackState,
		Data: state,
	}
}

func NewQueueUpdateMessage(queue, recentlyPlayed []types.QueueItem) *Message {
	if queue == nil {
		queue = []types.QueueItem{}
	}
	if recentlyPlayed == nil {
		recentlyPlayed = []types.QueueItem{}
	}

	return &Message{
		Type: MessageTypeQueueUpdate,
		Data: QueueUpdateData{
			Queue:          queue,
			RecentlyPlayed: recentlyPlayed,
		},
	}
}

func NewMemberJoinedMessage(user types.User, connectionCount int) *Message {
	return &Message{
		Type: MessageTypeMemberJoined,
		Data: MemberEventData{
			UserId:          user.Id,
			DisplayName:     user.DisplayName,
			ProfileImageURL: user.ProfileImageURL,
			ConnectionCount: connectionCount,
		},
	}
}

func NewMemberLeftMessage(user types.User, connectionCount int) *Message {
	return &Message{
		Type: MessageTypeMemberLeft,
		Data: MemberEventData{
			UserId:          user.Id,
			DisplayName:     user.DisplayName,
			ProfileImageURL: user.ProfileImageURL,
			ConnectionCount: connectionCount,
		},
	}
}

func NewNotificationMessage(text, level string) *Message {
	return &Message{
		Type: MessageTypeNotification,
		Data: NotificationData{
			Message: text,
			Level:   level,
		},
	}
}

func NewPongMessage() *Message {
	return &Message{
		Type: MessageTypePong,
		Data: struct{}{},
	}
}

// Now returns the wall clock in UTC at millisecond precision, the
// granularity all playback positions are measured in.
func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
