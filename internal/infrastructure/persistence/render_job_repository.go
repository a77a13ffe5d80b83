package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/quotedesk/renderd/internal/domain/document"
	"github.com/quotedesk/renderd/internal/domain/shared"
	"github.com/quotedesk/renderd/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormRenderJobRepository implements document.RenderJobRepository using GORM
type GormRenderJobRepository struct {
	db *gorm.DB
}

// NewGormRenderJobRepository creates a new GormRenderJobRepository
func NewGormRenderJobRepository(db *gorm.DB) *GormRenderJobRepository {
	return &GormRenderJobRepository{db: db}
}

// Save inserts or updates a render job
func (r *GormRenderJobRepository) Save(ctx context.Context, job *document.RenderJob) error {
	model := models.RenderJobModelFromDomain(job)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("failed to save render job %s: %w", job.ID, err)
	}
	return nil
}

// FindByID finds a render job by ID
func (r *GormRenderJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.RenderJob, error) {
	var model models.RenderJobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query render job %s: %w", id, err)
	}
	return model.ToDomain(), nil
}

// List returns render jobs matching the filter, newest first by default
func (r *GormRenderJobRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[document.RenderJob], error) {
	return r.list(r.db.WithContext(ctx).Model(&models.RenderJobModel{}), filter)
}

// ListByQuoteID returns the render jobs recorded for one quote
func (r *GormRenderJobRepository) ListByQuoteID(ctx context.Context, quoteID uuid.UUID, filter shared.Filter) (shared.Paginated[document.RenderJob], error) {
	query := r.db.WithContext(ctx).
		Model(&models.RenderJobModel{}).
		Where("quote_id = ?", quoteID)
	return r.list(query, filter)
}

func (r *GormRenderJobRepository) list(query *gorm.DB, filter shared.Filter) (shared.Paginated[document.RenderJob], error) {
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return shared.Paginated[document.RenderJob]{}, fmt.Errorf("failed to count render jobs: %w", err)
	}

	orderBy := ValidateSortField(filter.OrderBy, RenderJobSortFields, "created_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var jobModels []models.RenderJobModel
	if err := query.
		Order(orderBy + " " + orderDir).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&jobModels).Error; err != nil {
		return shared.Paginated[document.RenderJob]{}, fmt.Errorf("failed to list render jobs: %w", err)
	}

	jobs := make([]document.RenderJob, len(jobModels))
	for i, model := range jobModels {
		jobs[i] = *model.ToDomain()
	}
	return shared.NewPaginated(jobs, total, filter.Page, filter.Limit()), nil
}

// Ensure GormRenderJobRepository implements document.RenderJobRepository
var _ document.RenderJobRepository = (*GormRenderJobRepository)(nil)
