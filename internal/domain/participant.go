package domain

import (
	"strings"
	"time"
)

type ParticipantID string

type Role string

const (
	RoleAttendee  Role = "attendee"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAttendee:
		return RoleAttendee, true
	case RoleModerator:
		return RoleModerator, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// CanModerate reports whether the role may run moderator-only commands.
func (r Role) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

type MediaState struct {
	AudioEnabled bool `json:"audio_enabled"`
	VideoEnabled bool `json:"video_enabled"`
}

type Participant struct {
	ID            ParticipantID `json:"id"`
	DisplayName   string        `json:"display_name"`
	Role          Role          `json:"role"`
	Media         MediaState    `json:"media"`
	ScreenSharing bool          `json:"screen_sharing"`
	JoinedAt      time.Time     `json:"joined_at"`
}
