package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"path"
	"sync"

	"github.com/alextreichler/detailacademy/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// layoutFile holds the shared header, footer and flash blocks.
const layoutFile = "layout.html"

// TemplateCache holds parsed templates
type TemplateCache struct {
	cache map[string]*template.Template
	mu    sync.RWMutex
	funcs template.FuncMap
}

func NewTemplateCache() *TemplateCache {
	return &TemplateCache{
		cache: make(map[string]*template.Template),
		funcs: template.FuncMap{
			"money":        money,
			"dollars":      dollars,
			"supportEmail": func() string { return "" },
		},
	}
}

// AddFunc registers or replaces a template func. Call it before Load.
func (tc *TemplateCache) AddFunc(name string, fn interface{}) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.funcs[name] = fn
}

// Load parses the embedded page templates.
func (tc *TemplateCache) Load() error {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return err
	}
	return tc.LoadFS(sub)
}

// LoadFS parses every page in fsys together with the shared layout.
func (tc *TemplateCache) LoadFS(fsys fs.FS) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	files, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return err
	}
	for _, file := range files {
		name := path.Base(file)
		if name == layoutFile {
			continue
		}
		tmpl, err := template.New(name).Funcs(tc.funcs).ParseFS(fsys, file, layoutFile)
		if err != nil {
			slog.Error("Failed to parse template", "file", file, "error", err)
			return err
		}
		tc.cache[name] = tmpl
		slog.Debug("Cached template", "name", name)
	}
	return nil
}

func (tc *TemplateCache) Get(name string) *template.Template {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.cache[name]
}

// money formats cents as "$1200.00".
func money(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func dollars(p models.Price) string {
	return money(p.Cents())
}
