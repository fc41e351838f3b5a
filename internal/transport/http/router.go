package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/breakout-service/internal/auth"
	httpmw "github.com/cwrk-planet/breakout-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/breakout-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
)

// NewRouter; wsServer may be nil.
func NewRouter(h *Handler, v *auth.Verifier, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httpmw.WithRequestLoggerCtx)
	r.Use(httpmw.RequestLogger)
	r.Use(middlewareChi.Recoverer)

	// WS endpoint, авторизация по query-параметрам внутри сервера
	if wsServer != nil {
		r.Get("/ws/events/{eventID}", wsServer.HandleWS)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.Auth(v))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Get("/events", h.ListSessions)

		pr.Route("/events/{eventID}", func(ev chi.Router) {
			ev.Get("/", h.GetState)
			ev.Delete("/", h.CloseSession)
			ev.Get("/history", h.History)
			ev.Get("/unassigned", h.UnassignedPool)
			ev.Get("/archive/rooms", h.ArchivedRooms)
			ev.Get("/archive/rooms/{roomID}", h.ArchivedRoom)

			ev.Route("/participants", func(pr chi.Router) {
				pr.Post("/", h.Join)
				pr.Get("/", h.ListParticipants)
				pr.Delete("/{participantID}", h.RemoveParticipant)
				pr.Put("/{participantID}/media", h.UpdateMedia)
				pr.Post("/{participantID}/move", h.MoveParticipant)
			})

			ev.Route("/rooms", func(rm chi.Router) {
				rm.Post("/", h.CreateRooms)
				rm.Get("/", h.ListRooms)
				rm.Post("/start", h.StartAll)
				rm.Post("/end", h.EndAll)

				rm.Route("/{roomID}", func(rr chi.Router) {
					rr.Get("/", h.GetRoom)
					rr.Post("/extend", h.ExtendRoom)
					rr.Post("/cancel", h.CancelRoom)
					rr.Post("/close", h.CloseRoom)
					rr.Post("/messages", h.RecordRoomMessage)
				})
			})

			ev.Route("/presenters", func(ps chi.Router) {
				ps.Get("/", h.PresentingSet)
				ps.Post("/requests", h.RequestPresenter)
				ps.Delete("/requests", h.WithdrawPresenter)
				ps.Get("/queue", h.PresenterQueue)
				ps.Get("/queue/{participantID}", h.QueuePosition)
				ps.Post("/{participantID}/approve", h.ApprovePresenter)
				ps.Post("/{participantID}/deny", h.DenyPresenter)
				ps.Delete("/{participantID}", h.StopPresenting)
			})

			ev.Post("/screen-share", h.RequestScreenShare)
			ev.Delete("/screen-share/{participantID}", h.StopScreenShare)
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
