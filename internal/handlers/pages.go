package handlers

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"
)

const (
	publicSession   = "public-session"
	checkoutSession = "checkout-session"

	flowKey    = "flow"
	receiptKey = "receipt"
	visitorKey = "visitor"
)

// Pages renders templates with the flashes and CSRF field every page needs.
type Pages struct {
	Templates    *TemplateCache
	SessionStore *sessions.CookieStore
}

func (p *Pages) render(w http.ResponseWriter, r *http.Request, name string, data map[string]interface{}) {
	p.renderStatus(w, r, http.StatusOK, name, data)
}

func (p *Pages) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]interface{}) {
	tmpl := p.Templates.Get(name)
	if tmpl == nil {
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	session, _ := p.SessionStore.Get(r, publicSession)
	data["Flashes"] = GetFlash(session)
	data["CsrfField"] = csrf.TemplateField(r)
	data["Path"] = r.URL.Path

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		slog.Error("Failed to render template", "name", name, "error", err)
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}
	if err := session.Save(r, w); err != nil {
		slog.Error("Failed to save session", "error", err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (p *Pages) redirectWithFlash(w http.ResponseWriter, r *http.Request, url, kind, message string) {
	session, _ := p.SessionStore.Get(r, publicSession)
	session.AddFlash(FlashMessage{Type: kind, Message: message})
	if err := session.Save(r, w); err != nil {
		slog.Error("Failed to save session", "error", err)
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
