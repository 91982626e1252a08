// Package views renders the dashboard's HTML pages from templates embedded
// at build time. Every page is cloned from a shared layout.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path/filepath"
	"time"
)

//go:embed *.html
var templatesFS embed.FS

var funcMap = template.FuncMap{
	"percent":    formatPercent,
	"formatTime": formatTime,
}

type Engine struct {
	templates map[string]*template.Template
}

func New() (*Engine, error) {
	e := &Engine{
		templates: make(map[string]*template.Template),
	}

	layoutTmpl, err := template.New("layout.html").Funcs(funcMap).ParseFS(templatesFS, "layout.html")
	if err != nil {
		return nil, err
	}

	entries, err := fs.ReadDir(templatesFS, ".")
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == "layout.html" {
			continue
		}

		name := entry.Name()
		baseName := name[:len(name)-len(filepath.Ext(name))]

		// Clone layout and parse page template
		tmpl, err := layoutTmpl.Clone()
		if err != nil {
			return nil, err
		}

		_, err = tmpl.ParseFS(templatesFS, name)
		if err != nil {
			return nil, err
		}

		e.templates[baseName] = tmpl
	}

	return e, nil
}

func (e *Engine) Render(w io.Writer, name string, data any) error {
	tmpl, ok := e.templates[name]
	if !ok {
		return fmt.Errorf("unknown page template %q", name)
	}
	return tmpl.Execute(w, data)
}

// formatPercent renders a fractional rate for display, e.g. 0.425 -> "42.5%"
func formatPercent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

// formatTime shortens an RFC 3339 artifact timestamp for display. Anything
// that fails to parse is shown verbatim.
func formatTime(value string) string {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.Format("Jan 2, 2006 15:04")
}
