package views

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"math"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/rahul4469/speciessight/internal/models"
	"github.com/rahul4469/speciessight/internal/theme"
)

// TemplateFS is the root holding layouts/, partials/ and pages/.
var TemplateFS fs.FS

// Template wraps a parsed template with helper methods for rendering.
type Template struct {
	tmpl *template.Template
}

// TemplateData is the standard data structure passed to all templates.
// It contains common fields that every page might need.
type TemplateData struct {
	// Current authenticated user (nil if not logged in)
	CurrentUser *models.User

	// CSRF token for forms
	CSRFToken string

	// Flash messages
	Error   string
	Success string
	Warning string
	Info    string

	// Page-specific data
	Data any

	Title       string
	Description string

	// Request info (useful for active nav highlighting)
	CurrentPath string

	Theme theme.Preference

	IsDevelopment bool
}

// DefaultFuncMap returns the default template functions available in all templates.
func DefaultFuncMap() template.FuncMap {
	return template.FuncMap{
		// Confidence display
		"percent":       percent,
		"lowConfidence": lowConfidence,

		"imageSrc": imageSrc,
		"deref":    deref,
	}
}

// ParseFS parses templates from TemplateFS.
// It automatically includes the base layout and any partials.
//
// Usage:
//
//	tmpl, err := views.ParseFS("pages/home.gohtml")
//	// This will parse:
//	// - layouts/base.gohtml
//	// - partials/*.gohtml
//	// - pages/home.gohtml
func ParseFS(patterns ...string) (*Template, error) {
	if TemplateFS == nil {
		return nil, fmt.Errorf("views.TemplateFS is not set")
	}
	tmpl := template.New("").Funcs(DefaultFuncMap())

	// Parse base layout first
	basePath := "layouts/base.gohtml"
	baseContent, err := fs.ReadFile(TemplateFS, basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read base template: %w", err)
	}

	tmpl, err = tmpl.Parse(string(baseContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse base template: %w", err)
	}

	// Parse all partials - they define their own names with {{define "name"}}
	partialMatches, err := fs.Glob(TemplateFS, "partials/*.gohtml")
	if err != nil {
		return nil, fmt.Errorf("failed to glob partials: %w", err)
	}

	for _, match := range partialMatches {
		content, err := fs.ReadFile(TemplateFS, match)
		if err != nil {
			return nil, fmt.Errorf("failed to read partial %s: %w", match, err)
		}
		tmpl, err = tmpl.Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse partial %s: %w", match, err)
		}
	}

	// Parse the requested page templates - they define their own "content" block
	for _, pattern := range patterns {
		content, err := fs.ReadFile(TemplateFS, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", pattern, err)
		}
		tmpl, err = tmpl.Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", pattern, err)
		}
	}

	return &Template{tmpl: tmpl}, nil
}

// MustParseFS is like ParseFS but panics on error.
// Use this during initialization when templates must be valid.
func MustParseFS(patterns ...string) *Template {
	tmpl, err := ParseFS(patterns...)
	if err != nil {
		panic(fmt.Sprintf("failed to parse templates: %v", err))
	}
	return tmpl
}

// Execute renders the template to the given writer with the provided data.
func (t *Template) Execute(w io.Writer, data *TemplateData) error {
	return t.tmpl.ExecuteTemplate(w, "base", data)
}

// ExecuteHTTP renders the template as an HTTP response.
func (t *Template) ExecuteHTTP(w http.ResponseWriter, r *http.Request, data *TemplateData) {
	t.ExecuteHTTPWithStatus(w, r, http.StatusOK, data)
}

// ExecuteHTTPWithStatus renders the template with a custom HTTP status code.
func (t *Template) ExecuteHTTPWithStatus(w http.ResponseWriter, r *http.Request, status int, data *TemplateData) {
	if data == nil {
		data = &TemplateData{}
	}
	data.CurrentPath = r.URL.Path
	if data.Theme == "" {
		data.Theme = theme.FromContext(r.Context())
	}

	// Render to buffer first to catch errors
	buf := &bytes.Buffer{}
	if err := t.Execute(buf, data); err != nil {
		zap.L().Error("template execution failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Template function implementations

// percent renders a [0,1] confidence as a whole percentage.
func percent(confidence float64) string {
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) {
		return "-"
	}
	return fmt.Sprintf("%d%%", int(math.Round(confidence*100)))
}

func lowConfidence(confidence, threshold float64) bool {
	return confidence < threshold
}

// imageSrc lets uploaded data URIs and http(s) URLs through as image
// sources. Anything else renders as an empty src.
func imageSrc(s string) template.URL {
	switch {
	case strings.HasPrefix(s, "data:image/png;base64,"),
		strings.HasPrefix(s, "data:image/jpeg;base64,"),
		strings.HasPrefix(s, "https://"),
		strings.HasPrefix(s, "http://"):
		return template.URL(s)
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

