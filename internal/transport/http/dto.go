package http

import (
	"github.com/cwrk-planet/breakout-service/internal/domain"
)

type JoinRequest struct {
	DisplayName string `json:"display_name"`
}

type CreateRoomsRequest struct {
	Count           int              `json:"count"`
	DurationSeconds int              `json:"duration_seconds"`
	NamePrefix      string           `json:"name_prefix"`
	Strategy        string           `json:"strategy"`
	Capacity        int              `json:"capacity"`
	Features        *domain.Features `json:"features,omitempty"`
}

type MoveRequest struct {
	From domain.RoomID `json:"from"`
	To   domain.RoomID `json:"to"`
}

type ExtendRequest struct {
	Seconds int `json:"seconds"`
}

type PresenterRequestResponse struct {
	Entry    domain.QueueEntry `json:"entry"`
	Position int               `json:"position"`
}

type QueuePositionResponse struct {
	ParticipantID domain.ParticipantID `json:"participant_id"`
	Position      int                  `json:"position"`
}

type HistoryResponse struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
