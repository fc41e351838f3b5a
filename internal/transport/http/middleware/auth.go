package httpmw

import (
	"context"
	"net/http"

	"github.com/cwrk-planet/breakout-service/internal/auth"
)

type ctxKey string

const ctxKeyIdentity ctxKey = "identity"

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Auth требует bearer-токен (если задан секрет) или X-User-ID.
func Auth(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := v.Identify(r.Header.Get("Authorization"), r.Header.Get(HeaderUserID), r.Header.Get(HeaderUserRole))
			if err != nil {
				L(r.Context()).Debug("auth rejected", "err", err)
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":{"message":"unauthorized","meta":{"kind":"unauthorized"}}}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromCtx(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(auth.Identity)
	return id, ok
}
