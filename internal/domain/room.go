package domain

import "time"

type RoomID string

// Unassigned is the location of a participant in the main session pool.
const Unassigned RoomID = ""

type RoomStatus string

const (
	RoomCreated RoomStatus = "created"
	RoomActive  RoomStatus = "active"
	RoomEnding  RoomStatus = "ending"
	RoomMerged  RoomStatus = "merged"
	RoomClosed  RoomStatus = "closed"
)

// Open reports whether participants may still be moved in or out of the room.
func (s RoomStatus) Open() bool {
	return s == RoomCreated || s == RoomActive
}

// Finished reports whether the room has reached a state with no outgoing transitions.
func (s RoomStatus) Finished() bool {
	return s == RoomMerged || s == RoomClosed
}

type Features struct {
	AllowScreenShare bool `json:"allow_screen_share" yaml:"allowScreenShare"`
	EnableChat       bool `json:"enable_chat" yaml:"enableChat"`
	EnableRecording  bool `json:"enable_recording" yaml:"enableRecording"`
}

func DefaultFeatures() Features {
	return Features{AllowScreenShare: true, EnableChat: true}
}

// Analytics is advisory and carries no invariants.
type Analytics struct {
	MessageCount    int     `json:"message_count"`
	EngagementScore float64 `json:"engagement_score"`
	AvgStaySeconds  float64 `json:"avg_stay_seconds"`
}

type Room struct {
	ID               RoomID          `json:"id"`
	Name             string          `json:"name"`
	Status           RoomStatus      `json:"status"`
	Capacity         int             `json:"capacity"`
	DurationSeconds  int             `json:"duration_seconds"`
	RemainingSeconds int             `json:"remaining_seconds"`
	MemberIDs        []ParticipantID `json:"member_ids"`
	Features         Features        `json:"features"`
	Analytics        Analytics       `json:"analytics"`
	CreatedAt        time.Time       `json:"created_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	EndedAt          *time.Time      `json:"ended_at,omitempty"`
}

// Clone returns a copy that shares no mutable state with r.
func (r Room) Clone() Room {
	out := r
	out.MemberIDs = append([]ParticipantID(nil), r.MemberIDs...)
	if r.StartedAt != nil {
		t := *r.StartedAt
		out.StartedAt = &t
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		out.EndedAt = &t
	}
	return out
}

func (r Room) Has(id ParticipantID) bool {
	for _, m := range r.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}
