package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/breakout-service/internal/auth"
	"github.com/cwrk-planet/breakout-service/internal/domain"
	"github.com/cwrk-planet/breakout-service/internal/postgres"
	httpmw "github.com/cwrk-planet/breakout-service/internal/transport/http/middleware"
)

var (
	errInvalidJSON     = errors.New("invalid json")
	errHistoryDisabled = errors.New("history storage is not configured")
)

type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

func ok(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{"data": data})
}

// fail пишет унифицированную ошибку: message + kind.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	if status >= 500 {
		httpmw.L(r.Context()).Error("request failed", slog.Any("err", err))
	}
	writeJSON(w, status, envelope{
		"error": envelope{
			"message": err.Error(),
			"meta":    envelope{"kind": kind},
		},
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errInvalidJSON):
		return http.StatusBadRequest, "invalid_json"
	case errors.Is(err, postgres.ErrInvalidCursor):
		return http.StatusBadRequest, "invalid_cursor"
	case errors.Is(err, errHistoryDisabled):
		return http.StatusNotImplemented, "not_implemented"
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	}

	kind := domain.KindOf(err)
	switch kind {
	case domain.KindInvalidConfiguration:
		return http.StatusBadRequest, string(kind)
	case domain.KindNotFound:
		return http.StatusNotFound, string(kind)
	case domain.KindPermissionDenied:
		return http.StatusForbidden, string(kind)
	case domain.KindSessionClosed:
		return http.StatusGone, string(kind)
	case domain.KindInvalidTransition,
		domain.KindAlreadyQueued,
		domain.KindAlreadyPresenting,
		domain.KindNotPresenting,
		domain.KindScreenShareInUse,
		domain.KindCapacityExceeded,
		domain.KindAlreadyJoined:
		return http.StatusConflict, string(kind)
	default:
		return http.StatusInternalServerError, string(domain.KindInternal)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidJSON
	}
	return nil
}
