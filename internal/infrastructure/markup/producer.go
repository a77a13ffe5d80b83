package markup

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/quotedesk/renderd/internal/domain/document"
)

//go:embed templates/*.html
var templateFS embed.FS

const quoteTemplateName = "quote.html"

// Producer turns a normalized document model into a complete, self-contained
// HTML document ready for pagination. It is a pure function of its inputs:
// no I/O, no shared mutable state, safe for concurrent use.
type Producer struct {
	tmpl *template.Template
}

// NewProducer parses the embedded quote template once at construction
func NewProducer() (*Producer, error) {
	funcMap := template.FuncMap{
		"formatMoney":    formatMoney,
		"formatMoneyRaw": formatMoneyRaw,
		"formatDate":     formatDate,
		"formatDecimal":  formatDecimal,
		"formatMetric":   formatMetric,
		"truncate":       truncate,
		"title":          titleCase,
		"statusLabel":    statusLabel,
		"markdown":       markdown,
		"safeCSS":        safeCSS,
		"safeURL":        safeURL,
	}

	tmpl, err := template.New(quoteTemplateName).Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse quote template: %w", err)
	}

	return &Producer{tmpl: tmpl}, nil
}

// view is the data bound to the quote template. The embedded Model exposes
// its fields directly; the rest are presentation directives resolved from
// the request options.
type view struct {
	document.Model
	PageSize       document.PageSize
	PageWidthMM    float64
	PageHeightMM   float64
	OptimizeImages bool
	GeneratedAt    time.Time
}

// Produce renders the model into paginated HTML markup. Entity escaping is
// html/template's contextual autoescape; the model arrives already sanitized.
// A template execution failure can only be caused by content the normalizer
// let through, so it surfaces as VALIDATION_ERROR.
func (p *Producer) Produce(ctx context.Context, model *document.Model, opts document.Options) (string, error) {
	if model == nil {
		return "", document.NewValidationError("Document model is nil")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	opts = opts.Normalized()
	width, height := opts.PageSize.Dimensions()

	data := view{
		Model:          *model,
		PageSize:       opts.PageSize,
		PageWidthMM:    width,
		PageHeightMM:   height,
		OptimizeImages: opts.OptimizeImages,
		GeneratedAt:    time.Now(),
	}

	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, quoteTemplateName, data); err != nil {
		return "", document.NewValidationError("Failed to produce document markup: " + err.Error())
	}
	return buf.String(), nil
}
