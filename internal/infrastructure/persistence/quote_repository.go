package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quotedesk/renderd/internal/domain/quote"
	"github.com/quotedesk/renderd/internal/domain/shared"
	"github.com/quotedesk/renderd/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormQuoteRepository implements quote.Repository using GORM. It is the
// read side of the pipeline: the quote system of record lives upstream,
// this repository only projects its tables.
type GormQuoteRepository struct {
	db *gorm.DB
}

// NewGormQuoteRepository creates a new GormQuoteRepository
func NewGormQuoteRepository(db *gorm.DB) *GormQuoteRepository {
	return &GormQuoteRepository{db: db}
}

// FindByID looks up the primary quote record
func (r *GormQuoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*quote.Quote, error) {
	var model models.QuoteModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query quote %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// ListLineEntries returns the quote's line entries ordered by position
func (r *GormQuoteRepository) ListLineEntries(ctx context.Context, quoteID uuid.UUID) ([]quote.LineEntry, error) {
	var entryModels []models.QuoteLineEntryModel
	if err := r.db.WithContext(ctx).
		Where("quote_id = ?", quoteID).
		Order("position ASC").
		Find(&entryModels).Error; err != nil {
		return nil, fmt.Errorf("failed to query line entries for quote %s: %w", quoteID, err)
	}

	entries := make([]quote.LineEntry, len(entryModels))
	for i, model := range entryModels {
		entries[i] = model.ToDomain()
	}
	return entries, nil
}

// ListSectionGroups returns the quote's grouped sub-sections ordered by
// position, with their metrics attached.
func (r *GormQuoteRepository) ListSectionGroups(ctx context.Context, quoteID uuid.UUID) ([]quote.SectionGroup, error) {
	var groupModels []models.QuoteSectionGroupModel
	if err := r.db.WithContext(ctx).
		Preload("Metrics").
		Where("quote_id = ?", quoteID).
		Order("position ASC").
		Find(&groupModels).Error; err != nil {
		return nil, fmt.Errorf("failed to query section groups for quote %s: %w", quoteID, err)
	}

	groups := make([]quote.SectionGroup, len(groupModels))
	for i, model := range groupModels {
		groups[i] = model.ToDomain()
	}
	return groups, nil
}

// FindBrandingProfile returns the branding profile attached to the quote
func (r *GormQuoteRepository) FindBrandingProfile(ctx context.Context, quoteID uuid.UUID) (*quote.BrandingProfile, error) {
	var model models.QuoteBrandingProfileModel
	if err := r.db.WithContext(ctx).First(&model, "quote_id = ?", quoteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query branding profile for quote %s: %w", quoteID, err)
	}
	return model.ToDomain(), nil
}

// Ensure GormQuoteRepository implements quote.Repository
var _ quote.Repository = (*GormQuoteRepository)(nil)
