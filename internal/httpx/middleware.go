package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/prasidya/minimart/internal/cart"
)

type ctxKey int

const identityKey ctxKey = iota

const sessionCookie = "cart_session"

// WithIdentity resolves the shopper identity for every request: the user id
// from the X-User-ID header (set by the auth frontend, whose design is not
// this service's concern) and a session id from the cart_session cookie,
// minted on first touch.
func WithIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id cart.Identity
		if v := r.Header.Get("X-User-ID"); v != "" {
			if uid, err := strconv.ParseInt(v, 10, 64); err == nil && uid > 0 {
				id.UserID = uid
			}
		}
		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			id.SessionID = c.Value
		} else {
			id.SessionID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    id.SessionID,
				Path:     "/",
				HttpOnly: true,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

func identityFrom(ctx context.Context) cart.Identity {
	id, _ := ctx.Value(identityKey).(cart.Identity)
	return id
}
