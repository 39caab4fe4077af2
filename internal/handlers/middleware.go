package handlers

import (
	"encoding/gob"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/alextreichler/detailacademy/internal/checkout"
)

// Register types for gob encoding (used by sessions)
func init() {
	gob.Register(FlashMessage{})
	gob.Register(checkout.Flow{})
	gob.Register(checkout.Receipt{})
}

// LoggingMiddleware logs the details of each HTTP request
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		// Wrap ResponseWriter to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)
		slog.Info("HTTP Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start),
			"ip", r.RemoteAddr,
		)
	})
}

// Custom ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// SecurityHeadersMiddleware adds standard security headers
func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "same-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; media-src https:; script-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// SubmitGuard lets one POST per browser and path run at a time. It is the
// server side of a disabled submit button: a double click while the first
// request is still working gets a 429, a corrected resubmit afterwards
// goes through.
type SubmitGuard struct {
	store    sessions.Store
	inflight sync.Map
	enabled  bool
}

func NewSubmitGuard(store sessions.Store, enabled bool) *SubmitGuard {
	return &SubmitGuard{store: store, enabled: enabled}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// visitorID returns the browser's checkout id, assigning one when the
// session has none yet.
func visitorID(session *sessions.Session) (string, bool) {
	if id, ok := session.Values[visitorKey].(string); ok && id != "" {
		return id, false
	}
	id := uuid.NewString()
	session.Values[visitorKey] = id
	return id, true
}

// Middleware enforces the guard on a form endpoint
func (g *SubmitGuard) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.enabled {
			next(w, r)
			return
		}
		session, _ := g.store.Get(r, checkoutSession)
		id, fresh := visitorID(session)
		if fresh {
			if err := session.Save(r, w); err != nil {
				slog.Error("Failed to save checkout session", "error", err)
			}
		}

		key := id + " " + r.URL.Path
		if _, busy := g.inflight.LoadOrStore(key, struct{}{}); busy {
			slog.Warn("Duplicate submit rejected", "ip", clientIP(r), "path", r.URL.Path)
			http.Error(w, "Your request is already being processed. Please wait a moment.", http.StatusTooManyRequests)
			return
		}
		defer g.inflight.Delete(key)
		next(w, r)
	}
}

// FlashMessage structure
type FlashMessage struct {
	Type    string
	Message string
}

// GetFlash retrieves flash messages from the session
func GetFlash(session *sessions.Session) []FlashMessage {
	flashes := session.Flashes()
	var messages []FlashMessage
	for _, f := range flashes {
		if fm, ok := f.(FlashMessage); ok {
			messages = append(messages, fm)
		}
	}
	return messages
}
