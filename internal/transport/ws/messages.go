package ws

import (
	"encoding/json"

	"github.com/cwrk-planet/breakout-service/internal/domain"
)

// Типы сообщений сервер -> клиент
const (
	TypeState     = "state"     // снапшот сессии при подключении
	TypeEvent     = "event"     // доменное событие сессии
	TypeDirective = "directive" // инструкция для медиа-слоя конкретному участнику
	TypeResult    = "result"    // ответ на команду клиента
	TypeChat      = "chat"      // сообщение в чате комнаты
)

// Команды клиент -> сервер; все выполняются от имени подключённого участника
const (
	CmdRequestPresenter   = "request_presenter"
	CmdWithdrawPresenter  = "withdraw_presenter"
	CmdStopPresenting     = "stop_presenting"
	CmdRequestScreenShare = "request_screen_share"
	CmdStopScreenShare    = "stop_screen_share"
	CmdUpdateMedia        = "update_media"
	CmdChat               = "chat"
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// inbound is what clients send; Payload is decoded per command.
type inbound struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type ResultPayload struct {
	RequestID string       `json:"request_id,omitempty"`
	Command   string       `json:"command"`
	OK        bool         `json:"ok"`
	Data      any          `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type ChatPayload struct {
	RoomID        domain.RoomID        `json:"room_id"`
	ParticipantID domain.ParticipantID `json:"participant_id"`
	Message       string               `json:"message"`
	TSUnix        int64                `json:"ts_unix,omitempty"`
}
