package authapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	"parley/cmd/internal/auth/session"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

// setSessionCookies writes the access/refresh pair. Both cookies are HttpOnly
// and carry a MaxAge equal to their token TTL.
func (h *Handler) setSessionCookies(w http.ResponseWriter, issued session.Issued, now time.Time) {
	h.setCookie(w, accessTokenCookie, issued.AccessToken, issued.AccessExp, now)
	h.setCookie(w, refreshTokenCookie, issued.RefreshToken, issued.RefreshExp, now)
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	h.expireCookie(w, accessTokenCookie)
	h.expireCookie(w, refreshTokenCookie)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, exp, now time.Time) {
	if h == nil || w == nil {
		return
	}
	maxAge := int(exp.Sub(now).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name string) {
	if h == nil || w == nil || strings.TrimSpace(name) == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	})
}

func cookieValue(r *http.Request, name string) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

// clientIP resolves the client address for rate limiting and device
// fingerprints. X-Forwarded-For is honored only when the deployment declares
// a trusted proxy in front.
func clientIP(r *http.Request, trustProxy bool) string {
	if r == nil {
		return ""
	}

	if trustProxy {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if first != "" {
				return first
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
