// Package prompts renders the fixed prompt contracts sent to the language model.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/Veraticus/the-observer/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template names.
const (
	StructuringSystem = "structuring_system"
	StructuringUser   = "structuring_user"
	ThemeUser         = "theme_user"
	Report            = "report"
	AlignmentSystem   = "alignment_system"
	AlignmentUser     = "alignment_user"
)

// GrowthAreas are the seven fixed report rows.
var GrowthAreas = []string{
	"🧠 Intellectual",
	"😊 Emotional",
	"🤝 Social",
	"🎨 Creativity",
	"🏃 Physical",
	"🧭 Character/Values",
	"🚀 Planning/Independence",
}

// Ratings is the fixed per-area rating vocabulary.
var Ratings = []string{"✅ Excellent", "✅ Good", "⚠️ Fair", "❌ Needs Work"}

// Bands is the fixed overall growth banding, from most to fewest active areas.
var Bands = []string{"🔵 Balanced Growth", "🟡 Moderate Growth", "🔴 Limited Growth"}

// Builder renders prompt templates.
type Builder struct {
	templates map[string]*template.Template
}

// New parses all embedded templates.
func New() (*Builder, error) {
	funcMap := template.FuncMap{
		"join":   strings.Join,
		"header": Header,
	}

	b := &Builder{templates: make(map[string]*template.Template)}
	for _, name := range []string{StructuringSystem, StructuringUser, ThemeUser, Report, AlignmentSystem, AlignmentUser} {
		filename := fmt.Sprintf("templates/%s.tmpl", name)
		tmpl, err := template.New(name + ".tmpl").Funcs(funcMap).ParseFS(templateFS, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		b.templates[name] = tmpl
	}
	return b, nil
}

// MustNew is New for package-level initialisation.
func MustNew() *Builder {
	b, err := New()
	if err != nil {
		panic(err)
	}
	return b
}

// Render executes the named template.
func (b *Builder) Render(name string, data any) (string, error) {
	tmpl, ok := b.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// TextData feeds templates that only need the observation text.
type TextData struct {
	Text string
}

// ReportData feeds the report template.
type ReportData struct {
	Session model.SessionInfo
	Text    string
	Areas   []string
	Ratings []string
	Bands   []string
}

// NewReportData fills in the fixed vocabularies.
func NewReportData(text string, session model.SessionInfo) ReportData {
	return ReportData{
		Text:    text,
		Session: session,
		Areas:   GrowthAreas,
		Ratings: Ratings,
		Bands:   Bands,
	}
}

// AlignmentData feeds the alignment user prompt.
type AlignmentData struct {
	GoalText string
	Text     string
}

// Header is the identity block every report starts with.
func Header(session model.SessionInfo) string {
	return fmt.Sprintf("🧒 Child's Name: %s\n📅 Date: %s", session.StudentName, session.SessionDate)
}
