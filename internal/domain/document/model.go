package document

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultAccentColor is applied when neither the request nor the branding
// profile supplies a usable accent color.
const DefaultAccentColor = "#1a73e8"

var accentColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Model is the normalized, render-safe projection of a quote. All free text
// has been sanitized and all numeric values are finite; the markup producer
// can consume it without further validation. Entity escaping is left to the
// markup layer, which knows the target format.
type Model struct {
	QuoteID       uuid.UUID
	Number        string
	Status        string
	CustomerName  string
	CustomerEmail string
	Currency      string
	IssuedAt      time.Time
	ValidUntil    *time.Time // nil when the quote has no expiry
	Heading       string
	Subheading    string
	Notes         string
	Terms         string
	TotalAmount   decimal.Decimal
	LineEntries   []LineEntry
	Sections      []Section
	Branding      Branding
}

// LineEntry is one normalized line item. Subtotal is carried verbatim from
// the source record and never re-derived downstream.
type LineEntry struct {
	Position    int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// Metric is one labeled numeric value inside a section
type Metric struct {
	Label string
	Value float64
	Unit  string
}

// Section is one optional grouped block of the document
type Section struct {
	Key     string
	Title   string
	Body    string
	Metrics []Metric
}

// Branding carries the visual identity applied to the document. A zero
// value renders with neutral defaults.
type Branding struct {
	CompanyName   string
	AccentColor   string
	LogoURL       string
	BackgroundURL string
	IntroText     string
	FooterText    string
}

// Options is the per-request options bag. Zero values mean "use the record
// value or the built-in default"; BuildModel resolves them. Immutable once
// accepted by the orchestrator.
type Options struct {
	PageSize           PageSize
	AccentColor        string
	HeadingOverride    string
	SubheadingOverride string
	BackgroundOverride string
	IncludeSections    map[string]bool // section key -> include; absent keys default to true
	OptimizeImages     bool
}

// Normalized returns a copy of o with defaults applied
func (o Options) Normalized() Options {
	if o.PageSize == "" {
		o.PageSize = PageSizeA4
	}
	return o
}

// Validate rejects unknown page sizes and malformed accent colors. Record
// data is tolerated elsewhere; request input is not.
func (o Options) Validate() error {
	if o.PageSize != "" && !o.PageSize.IsValid() {
		return NewValidationError("Unknown page size: " + o.PageSize.String())
	}
	if o.AccentColor != "" && !accentColorPattern.MatchString(o.AccentColor) {
		return NewValidationError("Accent color must be a #RRGGBB hex value")
	}
	return nil
}

// BuildModel returns a render-safe copy of raw with opts resolved against
// record values and built-in defaults. It is deterministic and side-effect
// free: free text is sanitized, metric values are coerced to finite numbers,
// excluded sections are dropped, and entries and sections are ordered by
// position. raw is not mutated. A quote with no line entries is rejected.
func BuildModel(raw Model, opts Options) (Model, error) {
	if err := opts.Validate(); err != nil {
		return Model{}, err
	}
	opts = opts.Normalized()

	if len(raw.LineEntries) == 0 {
		return Model{}, NewValidationError("Quote has no line entries to render")
	}

	m := Model{
		QuoteID:       raw.QuoteID,
		Number:        sanitizeText(raw.Number),
		Status:        sanitizeText(raw.Status),
		CustomerName:  sanitizeText(raw.CustomerName),
		CustomerEmail: sanitizeText(raw.CustomerEmail),
		Currency:      sanitizeText(raw.Currency),
		IssuedAt:      raw.IssuedAt,
		ValidUntil:    raw.ValidUntil,
		Notes:         sanitizeText(raw.Notes),
		Terms:         sanitizeText(raw.Terms),
		TotalAmount:   raw.TotalAmount,
	}

	m.LineEntries = make([]LineEntry, len(raw.LineEntries))
	for i, entry := range raw.LineEntries {
		m.LineEntries[i] = LineEntry{
			Position:    entry.Position,
			Description: sanitizeText(entry.Description),
			Quantity:    entry.Quantity,
			UnitPrice:   entry.UnitPrice,
			Subtotal:    entry.Subtotal, // preserved, never recomputed
		}
	}
	sort.SliceStable(m.LineEntries, func(i, j int) bool {
		return m.LineEntries[i].Position < m.LineEntries[j].Position
	})

	// A zero total on a quote that has entries is a data gap; fill it from
	// the preserved subtotals.
	if m.TotalAmount.IsZero() {
		total := decimal.Zero
		for _, entry := range m.LineEntries {
			total = total.Add(entry.Subtotal)
		}
		m.TotalAmount = total
	}

	m.Sections = buildSections(raw.Sections, opts.IncludeSections)
	m.Branding = buildBranding(raw.Branding, opts)

	m.Heading = sanitizeText(opts.HeadingOverride)
	if m.Heading == "" {
		m.Heading = "Quote " + m.Number
	}
	m.Subheading = sanitizeText(opts.SubheadingOverride)
	if m.Subheading == "" && m.CustomerName != "" {
		m.Subheading = "Prepared for " + m.CustomerName
	}

	return m, nil
}

func buildSections(raw []Section, include map[string]bool) []Section {
	sections := make([]Section, 0, len(raw))
	for _, s := range raw {
		key := sanitizeText(s.Key)
		if included, ok := include[key]; ok && !included {
			continue
		}
		section := Section{
			Key:   key,
			Title: sanitizeText(s.Title),
			Body:  sanitizeText(s.Body),
		}
		if len(s.Metrics) > 0 {
			section.Metrics = make([]Metric, len(s.Metrics))
			for i, metric := range s.Metrics {
				section.Metrics[i] = Metric{
					Label: sanitizeText(metric.Label),
					Value: coerceFinite(metric.Value),
					Unit:  sanitizeText(metric.Unit),
				}
			}
		}
		sections = append(sections, section)
	}
	return sections
}

func buildBranding(raw Branding, opts Options) Branding {
	b := Branding{
		CompanyName:   sanitizeText(raw.CompanyName),
		AccentColor:   sanitizeText(raw.AccentColor),
		LogoURL:       sanitizeText(raw.LogoURL),
		BackgroundURL: sanitizeText(raw.BackgroundURL),
		IntroText:     sanitizeText(raw.IntroText),
		FooterText:    sanitizeText(raw.FooterText),
	}
	// The request override wins; a malformed record color falls back to the
	// default instead of failing the render.
	if opts.AccentColor != "" {
		b.AccentColor = opts.AccentColor
	} else if !accentColorPattern.MatchString(b.AccentColor) {
		b.AccentColor = DefaultAccentColor
	}
	if override := sanitizeText(opts.BackgroundOverride); override != "" {
		b.BackgroundURL = override
	}
	return b
}

// sanitizeText enforces valid UTF-8 and strips control characters other than
// newline and tab, so downstream markup never sees raw control bytes.
func sanitizeText(s string) string {
	s = strings.ToValidUTF8(s, "")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// coerceFinite maps NaN and infinities to zero
func coerceFinite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
