package document

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/quotedesk/renderd/internal/domain/document"
	"github.com/quotedesk/renderd/internal/domain/quote"
	"github.com/quotedesk/renderd/internal/domain/shared"
	"go.uber.org/zap"
)

// Degraded-input markers surfaced to the caller when an optional lookup
// fails and the document renders without that input.
const (
	DegradedBranding      = "branding_profile"
	DegradedSectionGroups = "section_groups"
)

// Normalizer loads a quote and its sub-records and projects them into the
// raw document model. Lookups are tiered: the quote itself and its line
// entries are fatal, branding and section groups degrade the document
// instead of failing the request.
type Normalizer struct {
	quotes quote.Repository
	logger *zap.Logger
}

// NewNormalizer creates a new Normalizer
func NewNormalizer(quotes quote.Repository, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{quotes: quotes, logger: logger}
}

// NormalizedInput is the raw model plus the markers of every optional input
// that could not be loaded.
type NormalizedInput struct {
	Model    document.Model
	Degraded []string
}

// Load fetches the quote and all its render inputs. A missing quote yields
// RECORD_NOT_FOUND; a store failure on a fatal-tier lookup yields
// DATA_SOURCE_ERROR. Optional-tier failures are logged, marked and dropped.
func (n *Normalizer) Load(ctx context.Context, quoteID uuid.UUID) (*NormalizedInput, error) {
	q, err := n.quotes.FindByID(ctx, quoteID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, document.NewRecordNotFound(quoteID.String())
		}
		return nil, document.NewDataSourceError("quote", err)
	}

	entries, err := n.quotes.ListLineEntries(ctx, quoteID)
	if err != nil {
		return nil, document.NewDataSourceError("line entries", err)
	}

	input := &NormalizedInput{
		Model: document.Model{
			QuoteID:       q.ID,
			Number:        q.Number,
			Status:        q.Status.String(),
			CustomerName:  q.CustomerName,
			CustomerEmail: q.CustomerEmail,
			Currency:      string(q.Currency),
			IssuedAt:      q.IssuedAt,
			ValidUntil:    q.ValidUntil,
			Notes:         q.Notes,
			Terms:         q.Terms,
			TotalAmount:   q.TotalAmount,
			LineEntries:   toModelEntries(entries),
		},
	}

	groups, err := n.quotes.ListSectionGroups(ctx, quoteID)
	if err != nil {
		n.logger.Warn("section groups unavailable, rendering without them",
			zap.String("quoteId", quoteID.String()),
			zap.Error(err))
		input.Degraded = append(input.Degraded, DegradedSectionGroups)
	} else {
		input.Model.Sections = toModelSections(groups)
	}

	profile, err := n.quotes.FindBrandingProfile(ctx, quoteID)
	switch {
	case err == nil:
		input.Model.Branding = document.Branding{
			CompanyName:   profile.CompanyName,
			AccentColor:   profile.AccentColor,
			LogoURL:       profile.LogoURL,
			BackgroundURL: profile.BackgroundURL,
			IntroText:     profile.IntroText,
			FooterText:    profile.FooterText,
		}
	case errors.Is(err, shared.ErrNotFound):
		n.logger.Debug("no branding profile attached, rendering with defaults",
			zap.String("quoteId", quoteID.String()))
		input.Degraded = append(input.Degraded, DegradedBranding)
	default:
		n.logger.Warn("branding profile unavailable, rendering with defaults",
			zap.String("quoteId", quoteID.String()),
			zap.Error(err))
		input.Degraded = append(input.Degraded, DegradedBranding)
	}

	return input, nil
}

func toModelEntries(entries []quote.LineEntry) []document.LineEntry {
	out := make([]document.LineEntry, len(entries))
	for i, e := range entries {
		out[i] = document.LineEntry{
			Position:    e.Position,
			Description: e.Description,
			Quantity:    e.Quantity,
			UnitPrice:   e.UnitPrice,
			Subtotal:    e.Subtotal,
		}
	}
	return out
}

func toModelSections(groups []quote.SectionGroup) []document.Section {
	out := make([]document.Section, len(groups))
	for i, g := range groups {
		section := document.Section{
			Key:   g.Key,
			Title: g.Title,
			Body:  g.Body,
		}
		if len(g.Metrics) > 0 {
			section.Metrics = make([]document.Metric, len(g.Metrics))
			for j, m := range g.Metrics {
				section.Metrics[j] = document.Metric{
					Label: m.Label,
					Value: m.Value,
					Unit:  m.Unit,
				}
			}
		}
		out[i] = section
	}
	return out
}
