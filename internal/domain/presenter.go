package domain

type QueueStatus string

const (
	QueuePending  QueueStatus = "pending"
	QueueApproved QueueStatus = "approved"
	QueueDenied   QueueStatus = "denied"
)

// QueueEntry orders presenter requests by RequestedAt, a session-local
// monotonic sequence number rather than wall-clock time.
type QueueEntry struct {
	ParticipantID ParticipantID `json:"participant_id"`
	RequestedAt   uint64        `json:"requested_at"`
	Status        QueueStatus   `json:"status"`
}

type PresentingSet struct {
	ParticipantIDs []ParticipantID `json:"participant_ids"`
	ScreenSharerID ParticipantID   `json:"screen_sharer_id,omitempty"`
}

func (s PresentingSet) Has(id ParticipantID) bool {
	for _, p := range s.ParticipantIDs {
		if p == id {
			return true
		}
	}
	return false
}
