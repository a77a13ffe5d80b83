// Package models contains the GORM persistence models and their domain
// mappers. Domain aggregates never carry persistence tags themselves.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quotedesk/renderd/internal/domain/document"
	"github.com/quotedesk/renderd/internal/domain/quote"
	"github.com/quotedesk/renderd/internal/domain/shared"
	"github.com/quotedesk/renderd/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// QuoteModel is the GORM model for the quotes table
type QuoteModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key"`
	Number        string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Status        string          `gorm:"type:varchar(20);not null;default:'DRAFT'"`
	CustomerName  string          `gorm:"column:customer_name;type:varchar(200);not null"`
	CustomerEmail string          `gorm:"column:customer_email;type:varchar(200)"`
	Currency      string          `gorm:"type:varchar(3);not null;default:'USD'"`
	TotalAmount   decimal.Decimal `gorm:"column:total_amount;type:decimal(20,4);not null;default:0"`
	Notes         string          `gorm:"type:text"`
	Terms         string          `gorm:"type:text"`
	IssuedAt      time.Time       `gorm:"column:issued_at;not null"`
	ValidUntil    *time.Time      `gorm:"column:valid_until"`
	CreatedAt     time.Time       `gorm:"not null"`
	UpdatedAt     time.Time       `gorm:"not null"`
	Version       int             `gorm:"not null;default:1"`
}

// TableName returns the table name for QuoteModel
func (QuoteModel) TableName() string {
	return "quotes"
}

// ToDomain converts QuoteModel to a domain Quote
func (m *QuoteModel) ToDomain() *quote.Quote {
	return &quote.Quote{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		Number:        m.Number,
		Status:        quote.Status(m.Status),
		CustomerName:  m.CustomerName,
		CustomerEmail: m.CustomerEmail,
		Currency:      valueobject.Currency(m.Currency),
		TotalAmount:   m.TotalAmount,
		Notes:         m.Notes,
		Terms:         m.Terms,
		IssuedAt:      m.IssuedAt,
		ValidUntil:    m.ValidUntil,
	}
}

// QuoteModelFromDomain creates a QuoteModel from a domain Quote
func QuoteModelFromDomain(q *quote.Quote) *QuoteModel {
	return &QuoteModel{
		ID:            q.ID,
		Number:        q.Number,
		Status:        string(q.Status),
		CustomerName:  q.CustomerName,
		CustomerEmail: q.CustomerEmail,
		Currency:      string(q.Currency),
		TotalAmount:   q.TotalAmount,
		Notes:         q.Notes,
		Terms:         q.Terms,
		IssuedAt:      q.IssuedAt,
		ValidUntil:    q.ValidUntil,
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
		Version:       q.Version,
	}
}

// QuoteLineEntryModel is the GORM model for the quote_line_entries table
type QuoteLineEntryModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	QuoteID     uuid.UUID       `gorm:"column:quote_id;type:uuid;not null;index"`
	Position    int             `gorm:"not null;default:0"`
	Description string          `gorm:"type:text;not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:decimal(20,4);not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	CreatedAt   time.Time       `gorm:"not null"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for QuoteLineEntryModel
func (QuoteLineEntryModel) TableName() string {
	return "quote_line_entries"
}

// ToDomain converts QuoteLineEntryModel to a domain LineEntry
func (m *QuoteLineEntryModel) ToDomain() quote.LineEntry {
	return quote.LineEntry{
		ID:          m.ID,
		QuoteID:     m.QuoteID,
		Position:    m.Position,
		Description: m.Description,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		Subtotal:    m.Subtotal,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// QuoteLineEntryModelFromDomain creates a QuoteLineEntryModel from a domain LineEntry
func QuoteLineEntryModelFromDomain(e *quote.LineEntry) *QuoteLineEntryModel {
	return &QuoteLineEntryModel{
		ID:          e.ID,
		QuoteID:     e.QuoteID,
		Position:    e.Position,
		Description: e.Description,
		Quantity:    e.Quantity,
		UnitPrice:   e.UnitPrice,
		Subtotal:    e.Subtotal,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

// QuoteSectionGroupModel is the GORM model for the quote_section_groups table
type QuoteSectionGroupModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	QuoteID   uuid.UUID `gorm:"column:quote_id;type:uuid;not null;index"`
	Position  int       `gorm:"not null;default:0"`
	Key       string    `gorm:"type:varchar(50);not null"`
	Title     string    `gorm:"type:varchar(200);not null"`
	Body      string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Metrics []QuoteSectionMetricModel `gorm:"foreignKey:GroupID"`
}

// TableName returns the table name for QuoteSectionGroupModel
func (QuoteSectionGroupModel) TableName() string {
	return "quote_section_groups"
}

// ToDomain converts QuoteSectionGroupModel to a domain SectionGroup
func (m *QuoteSectionGroupModel) ToDomain() quote.SectionGroup {
	group := quote.SectionGroup{
		ID:        m.ID,
		QuoteID:   m.QuoteID,
		Position:  m.Position,
		Key:       m.Key,
		Title:     m.Title,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if len(m.Metrics) > 0 {
		group.Metrics = make([]quote.Metric, len(m.Metrics))
		for i, metric := range m.Metrics {
			group.Metrics[i] = metric.ToDomain()
		}
	}
	return group
}

// QuoteSectionMetricModel is the GORM model for the quote_section_metrics table
type QuoteSectionMetricModel struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key"`
	GroupID uuid.UUID `gorm:"column:group_id;type:uuid;not null;index"`
	Label   string    `gorm:"type:varchar(100);not null"`
	Value   float64   `gorm:"not null;default:0"`
	Unit    string    `gorm:"type:varchar(20)"`
}

// TableName returns the table name for QuoteSectionMetricModel
func (QuoteSectionMetricModel) TableName() string {
	return "quote_section_metrics"
}

// ToDomain converts QuoteSectionMetricModel to a domain Metric
func (m *QuoteSectionMetricModel) ToDomain() quote.Metric {
	return quote.Metric{
		ID:      m.ID,
		GroupID: m.GroupID,
		Label:   m.Label,
		Value:   m.Value,
		Unit:    m.Unit,
	}
}

// QuoteBrandingProfileModel is the GORM model for the quote_branding_profiles table
type QuoteBrandingProfileModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	QuoteID       uuid.UUID `gorm:"column:quote_id;type:uuid;not null;uniqueIndex"`
	CompanyName   string    `gorm:"column:company_name;type:varchar(200)"`
	AccentColor   string    `gorm:"column:accent_color;type:varchar(7)"`
	LogoURL       string    `gorm:"column:logo_url;type:text"`
	BackgroundURL string    `gorm:"column:background_url;type:text"`
	IntroText     string    `gorm:"column:intro_text;type:text"`
	FooterText    string    `gorm:"column:footer_text;type:text"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for QuoteBrandingProfileModel
func (QuoteBrandingProfileModel) TableName() string {
	return "quote_branding_profiles"
}

// ToDomain converts QuoteBrandingProfileModel to a domain BrandingProfile
func (m *QuoteBrandingProfileModel) ToDomain() *quote.BrandingProfile {
	return &quote.BrandingProfile{
		ID:            m.ID,
		QuoteID:       m.QuoteID,
		CompanyName:   m.CompanyName,
		AccentColor:   m.AccentColor,
		LogoURL:       m.LogoURL,
		BackgroundURL: m.BackgroundURL,
		IntroText:     m.IntroText,
		FooterText:    m.FooterText,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// RenderJobModel is the GORM model for the render_jobs table
type RenderJobModel struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key"`
	QuoteID      uuid.UUID  `gorm:"column:quote_id;type:uuid;not null;index"`
	QuoteNumber  string     `gorm:"column:quote_number;type:varchar(50);not null"`
	Status       string     `gorm:"type:varchar(20);not null;default:'QUEUED'"`
	Attempts     int        `gorm:"not null;default:0"`
	Locator      string     `gorm:"type:text"`
	Filename     string     `gorm:"type:varchar(255)"`
	PageCount    int        `gorm:"column:page_count;not null;default:0"`
	SizeBytes    int64      `gorm:"column:size_bytes;not null;default:0"`
	ElapsedMS    int64      `gorm:"column:elapsed_ms;not null;default:0"`
	Degraded     string     `gorm:"type:text"` // comma-separated degraded-input markers
	ErrorKind    string     `gorm:"column:error_kind;type:varchar(50)"`
	ErrorMessage string     `gorm:"column:error_message;type:text"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
	CreatedAt    time.Time  `gorm:"not null"`
	UpdatedAt    time.Time  `gorm:"not null"`
	Version      int        `gorm:"not null;default:1"`
}

// TableName returns the table name for RenderJobModel
func (RenderJobModel) TableName() string {
	return "render_jobs"
}

// ToDomain converts RenderJobModel to a domain RenderJob
func (m *RenderJobModel) ToDomain() *document.RenderJob {
	var degraded []string
	if m.Degraded != "" {
		degraded = strings.Split(m.Degraded, ",")
	}
	return &document.RenderJob{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		QuoteID:      m.QuoteID,
		QuoteNumber:  m.QuoteNumber,
		Status:       document.JobStatus(m.Status),
		Attempts:     m.Attempts,
		Locator:      m.Locator,
		Filename:     m.Filename,
		PageCount:    m.PageCount,
		SizeBytes:    m.SizeBytes,
		ElapsedMS:    m.ElapsedMS,
		Degraded:     degraded,
		ErrorKind:    m.ErrorKind,
		ErrorMessage: m.ErrorMessage,
		CompletedAt:  m.CompletedAt,
	}
}

// RenderJobModelFromDomain creates a RenderJobModel from a domain RenderJob
func RenderJobModelFromDomain(j *document.RenderJob) *RenderJobModel {
	return &RenderJobModel{
		ID:           j.ID,
		QuoteID:      j.QuoteID,
		QuoteNumber:  j.QuoteNumber,
		Status:       string(j.Status),
		Attempts:     j.Attempts,
		Locator:      j.Locator,
		Filename:     j.Filename,
		PageCount:    j.PageCount,
		SizeBytes:    j.SizeBytes,
		ElapsedMS:    j.ElapsedMS,
		Degraded:     strings.Join(j.Degraded, ","),
		ErrorKind:    j.ErrorKind,
		ErrorMessage: j.ErrorMessage,
		CompletedAt:  j.CompletedAt,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
		Version:      j.Version,
	}
}
