package quote

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the read-side contract against the external data store.
// Every method returns either data or a typed outcome: shared.ErrNotFound
// when the keyed record does not exist, or a wrapped store error for
// query failures — never an uncategorized panic.
type Repository interface {
	// FindByID looks up the primary quote record
	FindByID(ctx context.Context, id uuid.UUID) (*Quote, error)

	// ListLineEntries returns the quote's line entries ordered by position
	ListLineEntries(ctx context.Context, quoteID uuid.UUID) ([]LineEntry, error)

	// ListSectionGroups returns the quote's grouped sub-sections ordered by
	// position, with their metrics attached
	ListSectionGroups(ctx context.Context, quoteID uuid.UUID) ([]SectionGroup, error)

	// FindBrandingProfile returns the branding profile attached to the quote
	FindBrandingProfile(ctx context.Context, quoteID uuid.UUID) (*BrandingProfile, error)
}
