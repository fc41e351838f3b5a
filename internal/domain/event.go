package domain

import "time"

type EventType string

const (
	EventParticipantJoined       EventType = "participant_joined"
	EventParticipantMediaChanged EventType = "participant_media_changed"
	EventParticipantMoved        EventType = "participant_moved"
	EventParticipantRemoved      EventType = "participant_removed"

	EventRoomsCreated     EventType = "rooms_created"
	EventRoomStarted      EventType = "room_started"
	EventRoomExtended     EventType = "room_extended"
	EventRoomTimerWarning EventType = "room_timer_warning"
	EventRoomEnding       EventType = "room_ending"
	EventRoomMerged       EventType = "room_merged"
	EventRoomClosed       EventType = "room_closed"
	EventRoomMessage      EventType = "room_message_recorded"

	EventPresenterRequested EventType = "presenter_requested"
	EventPresenterWithdrawn EventType = "presenter_withdrawn"
	EventPresenterApproved  EventType = "presenter_approved"
	EventPresenterDenied    EventType = "presenter_denied"
	EventPresenterStopped   EventType = "presenter_stopped"
	EventScreenShareGranted EventType = "screen_share_granted"
	EventScreenShareRelease EventType = "screen_share_released"
)

// Move describes a membership change. Unassigned ("") is the main session pool.
type Move struct {
	From RoomID `json:"from"`
	To   RoomID `json:"to"`
}

// Event is emitted once per committed mutation of a session.
// Seq is strictly increasing within one session.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	At        time.Time `json:"at"`

	ParticipantID ParticipantID `json:"participant_id,omitempty"`
	RoomID        RoomID        `json:"room_id,omitempty"`
	ActorID       ParticipantID `json:"actor_id,omitempty"`

	Move        *Move        `json:"move,omitempty"`
	Room        *Room        `json:"room,omitempty"`
	Rooms       []Room       `json:"rooms,omitempty"`
	Participant *Participant `json:"participant,omitempty"`
	Media       *MediaState  `json:"media,omitempty"`
	Entry       *QueueEntry  `json:"entry,omitempty"`
	Position    int          `json:"position,omitempty"`
	Seconds     int          `json:"seconds,omitempty"`
	// Returned lists participants that went back to the unassigned pool.
	Returned []ParticipantID `json:"returned,omitempty"`
	// Reason is set on removals and closes, e.g. "left", "disconnected", "removed".
	Reason string `json:"reason,omitempty"`
}
