package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"canvass/pkg/requestcontext"
)

// BrowserSessionCookie identifies an anonymous browser session across the
// authentication redirect. Referral staging is keyed by this value.
const BrowserSessionCookie = "canvass_sid"

// BrowserSession ensures every request carries a browser session id,
// minting one when absent, and exposes it through the context.
func BrowserSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sid string
		if c, err := r.Cookie(BrowserSessionCookie); err == nil && c.Value != "" {
			sid = c.Value
		} else {
			sid = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     BrowserSessionCookie,
				Value:    sid,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := requestcontext.WithSessionID(r.Context(), sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
