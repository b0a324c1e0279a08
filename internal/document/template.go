package document

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/MahdiBaghbani/confsync-go/internal/platform/logutil"
)

//go:embed data/template.json
var templateJSON []byte

// TemplateSpec is the static shape of the article template: its identity,
// the document attrs and which elements and marks the abstract and body
// parts allow.
type TemplateSpec struct {
	ImportID         string
	Title            string
	Attrs            map[string]any
	AbstractElements []string
	AbstractMarks    []string
	BodyElements     []string
	BodyMarks        []string
}

// Template is the stored article template.
type Template struct {
	ID        uint   `gorm:"primaryKey"`
	ImportID  string `gorm:"uniqueIndex;size:128;not null"`
	Title     string `gorm:"size:255"`
	Content   Node   `gorm:"serializer:json"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TemplateRepository persists templates.
type TemplateRepository interface {
	// GetOrCreateTemplate returns the template with importID, creating it
	// with init applied when it does not exist yet.
	GetOrCreateTemplate(ctx context.Context, importID string, init func(*Template) error) (tpl *Template, created bool, err error)
	SaveTemplate(ctx context.Context, tpl *Template) error
}

// BuildContent returns the default template content shaped by spec.
func BuildContent(spec TemplateSpec) (*Node, error) {
	doc, err := Parse(templateJSON)
	if err != nil {
		return nil, fmt.Errorf("parse embedded template: %w", err)
	}
	doc.MergeAttrs(spec.Attrs)
	doc.MergeAttrs(map[string]any{"template": spec.Title, "import_id": spec.ImportID})

	for _, p := range doc.Content {
		switch p.ID() {
		case "abstract":
			setAllowed(p, spec.AbstractElements, spec.AbstractMarks)
		case "body":
			setAllowed(p, spec.BodyElements, spec.BodyMarks)
		}
	}
	return doc, nil
}

func setAllowed(p *Node, elements, marks []string) {
	p.MergeAttrs(map[string]any{
		"elements": stringsToAny(elements),
		"marks":    stringsToAny(marks),
	})
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// TemplateProvider hands out the article template, creating it on first use.
type TemplateProvider struct {
	repo   TemplateRepository
	spec   TemplateSpec
	logger *slog.Logger
}

// NewTemplateProvider creates a provider for spec.
func NewTemplateProvider(repo TemplateRepository, spec TemplateSpec, logger *slog.Logger) *TemplateProvider {
	return &TemplateProvider{repo: repo, spec: spec, logger: logutil.NoopIfNil(logger)}
}

// Default returns the template, creating it if needed. An existing
// template is returned as stored.
func (p *TemplateProvider) Default(ctx context.Context) (*Template, error) {
	return p.Ensure(ctx, false)
}

// Ensure gets or creates the template. With reset, an existing template is
// rewritten from the configured shape as well.
func (p *TemplateProvider) Ensure(ctx context.Context, reset bool) (*Template, error) {
	tpl, created, err := p.repo.GetOrCreateTemplate(ctx, p.spec.ImportID, p.fill)
	if err != nil {
		return nil, fmt.Errorf("get or create template %q: %w", p.spec.ImportID, err)
	}
	if created {
		p.logger.Info("template created", "import_id", p.spec.ImportID)
		return tpl, nil
	}
	if !reset {
		return tpl, nil
	}

	if err := p.fill(tpl); err != nil {
		return nil, err
	}
	if err := p.repo.SaveTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("save template %q: %w", p.spec.ImportID, err)
	}
	p.logger.Info("template reset", "import_id", p.spec.ImportID)
	return tpl, nil
}

func (p *TemplateProvider) fill(tpl *Template) error {
	content, err := BuildContent(p.spec)
	if err != nil {
		return err
	}
	tpl.ImportID = p.spec.ImportID
	tpl.Title = p.spec.Title
	tpl.Content = *content
	return nil
}
