package handlers

import (
	"context"
	"net/http"

	"github.com/alextreichler/detailacademy/internal/api"
	"github.com/alextreichler/detailacademy/internal/catalog"
	"github.com/alextreichler/detailacademy/internal/models"
)

// Catalog is the read side of the course catalog.
type Catalog interface {
	ListPublished(ctx context.Context) ([]models.Course, error)
	Get(ctx context.Context, id string) (*models.Course, error)
}

type CatalogHandler struct {
	Pages
	Catalog Catalog
}

func (h *CatalogHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data := map[string]interface{}{}
	courses, err := h.Catalog.ListPublished(r.Context())
	if err != nil {
		data["Error"] = api.UserMessage(err, "Failed to fetch courses")
	} else {
		data["Courses"] = catalog.NewestOf(courses, catalog.DefaultNewest)
	}
	h.render(w, r, "home.html", data)
}

func (h *CatalogHandler) Courses(w http.ResponseWriter, r *http.Request) {
	level := models.Level(r.URL.Query().Get("level"))
	data := map[string]interface{}{
		"Levels": models.Levels,
		"Level":  level,
	}
	courses, err := h.Catalog.ListPublished(r.Context())
	if err != nil {
		data["Error"] = api.UserMessage(err, "Failed to fetch courses")
		h.render(w, r, "courses.html", data)
		return
	}
	shown := courses
	if level != "" {
		shown = catalog.FilterByLevel(courses, level)
	}
	data["Cards"] = catalog.Listing(shown, courses)
	h.render(w, r, "courses.html", data)
}

// Static renders a page that needs no data.
func (h *CatalogHandler) Static(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, name, nil)
	}
}
