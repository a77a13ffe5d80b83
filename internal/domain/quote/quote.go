package quote

import (
	"time"

	"github.com/google/uuid"
	"github.com/quotedesk/renderd/internal/domain/shared"
	"github.com/quotedesk/renderd/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a quote
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusSent     Status = "SENT"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
	StatusExpired  Status = "EXPIRED"
)

// IsValid checks if the status is a valid Status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusDeclined, StatusExpired:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// AllStatuses returns every valid quote status
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusSent, StatusAccepted, StatusDeclined, StatusExpired}
}

// Quote is the source business record the rendering pipeline projects
// into a document. The pipeline only reads quotes; authoring lives in
// the upstream system of record.
type Quote struct {
	shared.BaseAggregateRoot
	Number        string
	Status        Status
	CustomerName  string
	CustomerEmail string
	Currency      valueobject.Currency
	TotalAmount   decimal.Decimal
	Notes         string // free text, may contain markdown
	Terms         string // free text, may contain markdown
	IssuedAt      time.Time
	ValidUntil    *time.Time
}

// NewQuote creates a new quote record
func NewQuote(number, customerName string, currency valueobject.Currency) (*Quote, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_QUOTE_NUMBER", "Quote number cannot be empty")
	}
	if len(number) > 50 {
		return nil, shared.NewDomainError("INVALID_QUOTE_NUMBER", "Quote number cannot exceed 50 characters")
	}
	if customerName == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER_NAME", "Customer name cannot be empty")
	}
	if !currency.IsValid() {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Unknown currency code")
	}

	return &Quote{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		Status:            StatusDraft,
		CustomerName:      customerName,
		Currency:          currency,
		TotalAmount:       decimal.Zero,
		IssuedAt:          time.Now(),
	}, nil
}

// LineEntry represents one billable line of a quote
type LineEntry struct {
	ID          uuid.UUID
	QuoteID     uuid.UUID
	Position    int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal // Quantity * UnitPrice, rounded to the currency minor unit
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewLineEntry creates a new line entry. The subtotal is derived once
// here — quantity times unit price, rounded to the currency's minor
// unit — and preserved verbatim everywhere downstream.
func NewLineEntry(quoteID uuid.UUID, position int, description string, quantity decimal.Decimal, unitPrice valueobject.Money) (*LineEntry, error) {
	if quoteID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_QUOTE_ID", "Quote ID cannot be empty")
	}
	if description == "" {
		return nil, shared.NewDomainError("INVALID_DESCRIPTION", "Line description cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}

	now := time.Now()
	subtotal := unitPrice.Multiply(quantity).RoundToMinorUnit()

	return &LineEntry{
		ID:          uuid.New(),
		QuoteID:     quoteID,
		Position:    position,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice.Amount(),
		Subtotal:    subtotal.Amount(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// SubtotalMoney returns the preserved subtotal as Money in the given currency
func (e *LineEntry) SubtotalMoney(currency valueobject.Currency) valueobject.Money {
	m, _ := valueobject.NewMoney(e.Subtotal, currency)
	return m
}

// Metric is one structured figure attached to a section group
// (e.g. "Coverage — 98.2 %")
type Metric struct {
	ID      uuid.UUID
	GroupID uuid.UUID
	Label   string
	Value   float64
	Unit    string
}

// SectionGroup is an optional grouped sub-section of a quote: a titled
// block of explanatory text plus optional structured metrics.
type SectionGroup struct {
	ID        uuid.UUID
	QuoteID   uuid.UUID
	Position  int
	Key       string // stable slug used by per-section inclusion flags
	Title     string
	Body      string // free text, may contain markdown
	Metrics   []Metric
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSectionGroup creates a new section group
func NewSectionGroup(quoteID uuid.UUID, position int, key, title string) (*SectionGroup, error) {
	if quoteID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_QUOTE_ID", "Quote ID cannot be empty")
	}
	if key == "" {
		return nil, shared.NewDomainError("INVALID_SECTION_KEY", "Section key cannot be empty")
	}
	if title == "" {
		return nil, shared.NewDomainError("INVALID_SECTION_TITLE", "Section title cannot be empty")
	}

	now := time.Now()
	return &SectionGroup{
		ID:        uuid.New(),
		QuoteID:   quoteID,
		Position:  position,
		Key:       key,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// BrandingProfile carries the customer-facing visual identity applied
// to rendered documents: palette, text blocks and image references.
type BrandingProfile struct {
	ID            uuid.UUID
	QuoteID       uuid.UUID
	CompanyName   string
	AccentColor   string // hex, e.g. "#1F6FEB"
	LogoURL       string
	BackgroundURL string
	IntroText     string // free text, may contain markdown
	FooterText    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
