package panel

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/nerrad567/presence-core/internal/device"
)

//go:embed templates/* static/*
var content embed.FS

// Placeholder is shown instead of aliases and the MAC when the caller's
// device has not been discovered yet.
const Placeholder = "????"

const indexTemplate = "index.html"

// VisibilityOption is one radio button of the settings form.
type VisibilityOption struct {
	ID          string
	Value       device.Visibility
	Checked     bool
	Description string
}

var visibilityText = []struct {
	id          string
	value       device.Visibility
	description string
}{
	{"radioVisibilityAll", device.VisibilityAll, "Alles anzeigen, d.h. Name/Alias und Gerätename"},
	{"radioVisibilityAlias", device.VisibilityUser, "Mit Name/Alias anzeigen"},
	{"radioVisibilityAnonymous", device.VisibilityAnon, "Als anonyme Person anzeigen"},
	{"radioVisibilityNone", device.VisibilityIgnore, "Gar nicht anzeigen. Die wirklich paranoide Option. Meistens ist der obere Punkt besser."},
}

// VisibilityOptions returns the four options with selected checked. An
// empty or unknown selection checks "all".
func VisibilityOptions(selected device.Visibility) []VisibilityOption {
	if !selected.Valid() {
		selected = device.VisibilityAll
	}
	opts := make([]VisibilityOption, 0, len(visibilityText))
	for _, v := range visibilityText {
		opts = append(opts, VisibilityOption{
			ID:          v.id,
			Value:       v.value,
			Checked:     v.value == selected,
			Description: v.description,
		})
	}
	return opts
}

// IndexPage is the data rendered by the settings page.
type IndexPage struct {
	SiteName    string
	UserAlias   string
	DeviceAlias string
	MACAddress  string
	Options     []VisibilityOption
	DeviceCount int

	// HasData is false for callers that could not be identified; the form
	// is not shown to them.
	HasData bool
}

// UnknownCaller returns the page shown to unidentified callers.
func UnknownCaller(siteName string, deviceCount int) IndexPage {
	return IndexPage{
		SiteName:    siteName,
		UserAlias:   Placeholder,
		DeviceAlias: Placeholder,
		MACAddress:  Placeholder,
		DeviceCount: deviceCount,
	}
}

// Pages holds the parsed HTML templates.
type Pages struct {
	tmpl *template.Template
}

// Load parses the page templates. When dir is non-empty and holds a
// templates directory, it is used instead of the embedded copy.
func Load(dir string) (*Pages, error) {
	fsys, err := source(dir, "templates")
	if err != nil {
		return nil, err
	}
	tmpl, err := template.ParseFS(fsys, "*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	if tmpl.Lookup(indexTemplate) == nil {
		return nil, fmt.Errorf("template %s not found", indexTemplate)
	}
	return &Pages{tmpl: tmpl}, nil
}

// RenderIndex writes the settings page.
func (p *Pages) RenderIndex(w io.Writer, page IndexPage) error {
	if err := p.tmpl.ExecuteTemplate(w, indexTemplate, page); err != nil {
		return fmt.Errorf("rendering %s: %w", indexTemplate, err)
	}
	return nil
}

// Static returns a handler for the stylesheets and images under static/.
// Mount it with the URL prefix stripped.
func Static(dir string) http.Handler {
	fsys, err := source(dir, "static")
	if err != nil {
		panic(fmt.Sprintf("panel: failed to load embedded static assets: %v", err))
	}
	fileServer := http.FileServer(http.FS(fsys))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		fileServer.ServeHTTP(w, r)
	})
}

// source picks dir/sub on disk if it exists, else the embedded sub tree.
func source(dir, sub string) (fs.FS, error) {
	if dir != "" {
		onDisk := filepath.Join(dir, sub)
		if info, err := os.Stat(onDisk); err == nil && info.IsDir() {
			return os.DirFS(onDisk), nil
		}
	}
	return fs.Sub(content, sub)
}
