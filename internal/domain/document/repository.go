package document

import (
	"context"

	"github.com/google/uuid"
	"github.com/quotedesk/renderd/internal/domain/shared"
)

// RenderJobRepository persists render-job bookkeeping. Implementations return
// shared.ErrNotFound when no job matches; any other failure is a wrapped
// store error. Callers treat Save failures as non-fatal.
type RenderJobRepository interface {
	Save(ctx context.Context, job *RenderJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*RenderJob, error)
	List(ctx context.Context, filter shared.Filter) (shared.Paginated[RenderJob], error)
	ListByQuoteID(ctx context.Context, quoteID uuid.UUID, filter shared.Filter) (shared.Paginated[RenderJob], error)
}
