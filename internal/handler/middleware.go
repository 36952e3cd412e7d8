package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/RAHUL-DevelopeRR/QP/internal/model"
)

const (
	sessionCookieName = "qp_session"
	csrfCookieName    = "csrf_token"
	csrfFormField     = "csrf_token"
	accessKeyHeader   = "X-Access-Key"
)

// BasePathMiddleware makes the deployment prefix available to views.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

// sessionMiddleware attaches the browser's UI session, starting a new one when
// the cookie is missing or the session has expired.
func (h *Handler) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			if _, ok := h.sessions.Snapshot(cookie.Value); ok {
				id = cookie.Value
			}
		}
		if id == "" {
			id = h.sessions.Create()
			slog.Debug("started UI session", "session", id)
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    id,
				Path:     h.cookiePath(),
				HttpOnly: true,
				Secure:   h.config.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := model.ContextWithSessionID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// csrfMiddleware implements the double-submit cookie check. The token lives as
// long as its cookie so downloads and open forms never invalidate each other.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if cookie, err := r.Cookie(csrfCookieName); err == nil {
			token = cookie.Value
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			formToken := r.FormValue(csrfFormField)
			if token == "" || formToken == "" {
				slog.Warn("CSRF token missing", "path", r.URL.Path)
				http.Error(w, GetMessage(ErrCSRF), http.StatusForbidden)
				return
			}
			if subtle.ConstantTimeCompare([]byte(formToken), []byte(token)) != 1 {
				slog.Warn("CSRF token mismatch", "path", r.URL.Path)
				http.Error(w, GetMessage(ErrCSRF), http.StatusForbidden)
				return
			}
		}

		if token == "" {
			var err error
			if token, err = generateCSRFToken(); err != nil {
				slog.Error("failed to generate CSRF token", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Name:     csrfCookieName,
				Value:    token,
				Path:     h.cookiePath(),
				HttpOnly: false,
				Secure:   h.config.SecureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := model.ContextWithCSRFToken(r.Context(), token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAccessKey guards the JSON API when an access hash is configured.
func (h *Handler) requireAccessKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.config.AccessHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get(accessKeyHeader)
		if key == "" {
			writeError(w, http.StatusUnauthorized, ErrAccessKeyRequired)
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(h.config.AccessHash), []byte(key)); err != nil {
			slog.Warn("rejected API access key", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, ErrAccessKeyInvalid)
			return
		}
		next.ServeHTTP(w, r)
	})
}
