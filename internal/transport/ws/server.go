package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/breakout-service/internal/auth"
	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/internal/session"
	"github.com/cwrk-planet/breakout-service/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	sessions *session.Manager
	verifier *auth.Verifier

	// presence serialises join+attach against detach+disconnect of one
	// participant; striped by (event, participant).
	presence [64]sync.Mutex

	pingEvery time.Duration
}

func NewServer(hub *Hub, sessions *session.Manager, verifier *auth.Verifier) *Server {
	return &Server{
		hub:      hub,
		sessions: sessions,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// WS endpoint: GET /ws/events/{eventID}?access_token=...&user_id=...&role=...&display_name=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	authz := ""
	if tok := strings.TrimSpace(q.Get("access_token")); tok != "" {
		authz = "Bearer " + tok
	}
	id, err := s.verifier.Identify(authz, q.Get("user_id"), q.Get("role"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	eventID := chi.URLParam(r, "eventID")
	sess, err := s.sessions.Open(eventID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// повторное подключение того же участника не ошибка
	lock := s.presenceLock(eventID, id.ID)
	lock.Lock()
	_, err = sess.Join(r.Context(), domain.Participant{ID: id.ID, DisplayName: q.Get("display_name"), Role: id.Role})
	joined := err == nil
	if err != nil && !errors.Is(err, domain.ErrAlreadyJoined) {
		lock.Unlock()
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if joined && s.hub.Count(eventID, id.ID) == 0 {
			s.disconnect(sess, id.ID)
		}
		lock.Unlock()
		slog.Warn("ws upgrade failed", logger.EventID(eventID), logger.Participant(string(id.ID)), "err", err)
		return
	}

	c := newWsConn(conn, eventID, id.ID)
	s.hub.Add(c)
	lock.Unlock()

	if err := c.Send(Message{Type: TypeState, Payload: sess.Snapshot()}); err != nil {
		slog.Warn("ws send initial state failed", logger.EventID(eventID), logger.Participant(string(id.ID)), "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go s.writeLoop(ctx, c)
	s.readLoop(ctx, sess, c)
	cancel()

	lock.Lock()
	if last := s.hub.Remove(c); last {
		// обрыв соединения: приоритетное удаление из всех множеств
		s.disconnect(sess, id.ID)
	}
	lock.Unlock()

	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", logger.EventID(eventID), logger.Participant(string(id.ID)), "err", err)
	}
}

func (s *Server) presenceLock(eventID string, pid domain.ParticipantID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(eventID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(pid))
	return &s.presence[h.Sum32()%uint32(len(s.presence))]
}

func (s *Server) disconnect(sess *session.Session, pid domain.ParticipantID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sess.Disconnect(ctx, pid); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Debug("ws disconnect failed", logger.EventID(sess.ID()), logger.Participant(string(pid)), "err", err)
	}
}

func (s *Server) readLoop(ctx context.Context, sess *session.Session, c *wsConn) {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		out, cmdErr := s.dispatch(ctx, sess, c.participantID, msg)
		res := ResultPayload{RequestID: msg.RequestID, Command: msg.Type, OK: cmdErr == nil}
		if cmdErr != nil {
			res.Error = &ErrorDetail{Kind: string(domain.KindOf(cmdErr)), Message: cmdErr.Error()}
		} else {
			res.Data = out
		}
		_ = c.Send(Message{Type: TypeResult, Payload: res})
	}
}

func (s *Server) dispatch(ctx context.Context, sess *session.Session, me domain.ParticipantID, msg inbound) (any, error) {
	switch msg.Type {
	case CmdRequestPresenter:
		entry, pos, err := sess.RequestPresenter(ctx, me)
		return map[string]any{"entry": entry, "position": pos}, err
	case CmdWithdrawPresenter:
		return sess.WithdrawPresenter(ctx, me)
	case CmdStopPresenting:
		return sess.StopPresenting(ctx, me, me)
	case CmdRequestScreenShare:
		return sess.RequestScreenShare(ctx, me)
	case CmdStopScreenShare:
		return sess.StopScreenShare(ctx, me, me)
	case CmdUpdateMedia:
		var m domain.MediaState
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			return nil, fmt.Errorf("%w: media payload: %v", domain.ErrInvalidConfiguration, err)
		}
		return sess.UpdateMedia(ctx, me, me, m)
	case CmdChat:
		return s.chat(ctx, sess, me, msg.Payload)
	default:
		return nil, fmt.Errorf("%w: unknown command %q", domain.ErrInvalidConfiguration, msg.Type)
	}
}

// chat считает сообщение в аналитике комнаты и рассылает его участникам этой комнаты.
func (s *Server) chat(ctx context.Context, sess *session.Session, me domain.ParticipantID, raw json.RawMessage) (any, error) {
	var p ChatPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: chat payload: %v", domain.ErrInvalidConfiguration, err)
	}
	text := strings.TrimSpace(p.Message)
	if text == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrInvalidConfiguration)
	}
	room, err := sess.RecordRoomMessage(ctx, me, p.RoomID)
	if err != nil {
		return nil, err
	}
	out := ChatPayload{RoomID: room.ID, ParticipantID: me, Message: text, TSUnix: time.Now().Unix()}
	for _, member := range room.MemberIDs {
		s.hub.SendTo(sess.ID(), member, Message{Type: TypeChat, Payload: out})
	}
	return out, nil
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// -------- conn --------

type wsConn struct {
	conn          *websocket.Conn
	sessionID     string
	participantID domain.ParticipantID
	sendMu        chan struct{}
	closed        chan struct{}
	closeOnce     chan struct{}
}

func newWsConn(c *websocket.Conn, sessionID string, pid domain.ParticipantID) *wsConn {
	once := make(chan struct{}, 1)
	once <- struct{}{}
	return &wsConn{
		conn:          c,
		sessionID:     sessionID,
		participantID: pid,
		sendMu:        make(chan struct{}, 1),
		closed:        make(chan struct{}),
		closeOnce:     once,
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closeOnce:
		close(c.closed)
		return c.conn.Close()
	default:
		return nil
	}
}

func (c *wsConn) SessionID() string                  { return c.sessionID }
func (c *wsConn) ParticipantID() domain.ParticipantID { return c.participantID }
