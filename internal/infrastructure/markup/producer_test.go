package markup

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quotedesk/renderd/internal/domain/document"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModel(t *testing.T) document.Model {
	t.Helper()
	raw := document.Model{
		QuoteID:      uuid.New(),
		Number:       "Q-2026-0042",
		Status:       "SENT",
		CustomerName: "Acme Corp",
		Currency:     "USD",
		IssuedAt:     time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Notes:        "Payment due within **30 days**.",
		TotalAmount:  decimal.RequireFromString("537.50"),
		LineEntries: []document.LineEntry{
			{
				Position:    1,
				Description: "Implementation work",
				Quantity:    decimal.NewFromInt(2),
				UnitPrice:   decimal.RequireFromString("250.00"),
				Subtotal:    decimal.RequireFromString("500.00"),
			},
			{
				Position:    2,
				Description: "License seats",
				Quantity:    decimal.NewFromInt(3),
				UnitPrice:   decimal.RequireFromString("12.50"),
				Subtotal:    decimal.RequireFromString("37.50"),
			},
		},
		Sections: []document.Section{
			{
				Key:   "sla",
				Title: "Service Levels",
				Body:  "Response within *4 hours*.",
				Metrics: []document.Metric{
					{Label: "Uptime", Value: 99.9, Unit: "%"},
				},
			},
		},
		Branding: document.Branding{
			CompanyName: "Acme Corp",
			AccentColor: "#1F6FEB",
		},
	}

	model, err := document.BuildModel(raw, document.Options{})
	require.NoError(t, err)
	return model
}

func TestProducer_Produce(t *testing.T) {
	producer, err := NewProducer()
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("produces a complete standalone document", func(t *testing.T) {
		model := testModel(t)

		out, err := producer.Produce(ctx, &model, document.Options{})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "<!DOCTYPE html>"))
		assert.Contains(t, out, "Q-2026-0042")
		assert.Contains(t, out, "Acme Corp")
		assert.Contains(t, out, "Implementation work")
		assert.Contains(t, out, "2026-01-15")
	})

	t.Run("renders preserved subtotals verbatim", func(t *testing.T) {
		model := testModel(t)
		// 3 x 12.50: the stored subtotal must land in the markup as-is,
		// never be recomputed from quantity and unit price.
		out, err := producer.Produce(ctx, &model, document.Options{})
		require.NoError(t, err)

		assert.Contains(t, out, "$37.50")
		assert.Contains(t, out, "$500.00")
		assert.Contains(t, out, "$537.50")
	})

	t.Run("applies the accent color", func(t *testing.T) {
		model := testModel(t)

		out, err := producer.Produce(ctx, &model, document.Options{})
		require.NoError(t, err)
		assert.Contains(t, out, "#1F6FEB")
	})

	t.Run("defaults the page size to A4", func(t *testing.T) {
		model := testModel(t)

		out, err := producer.Produce(ctx, &model, document.Options{})
		require.NoError(t, err)
		assert.Contains(t, out, "210")
		assert.Contains(t, out, "297")
	})

	t.Run("letter page size changes the dimensions", func(t *testing.T) {
		model := testModel(t)

		out, err := producer.Produce(ctx, &model, document.Options{PageSize: document.PageSizeLetter})
		require.NoError(t, err)
		assert.Contains(t, out, "215.9")
		assert.Contains(t, out, "279.4")
	})

	t.Run("renders markdown in free-text blocks", func(t *testing.T) {
		model := testModel(t)

		out, err := producer.Produce(ctx, &model, document.Options{})
		require.NoError(t, err)
		assert.Contains(t, out, "<strong>30 days</strong>")
		assert.Contains(t, out, "<em>4 hours</em>")
	})

	t.Run("renders section metrics", func(t *testing.T) {
		model := testModel(t)

		out, err := producer.Produce(ctx, &model, document.Options{})
		require.NoError(t, err)
		assert.Contains(t, out, "Service Levels")
		assert.Contains(t, out, "Uptime")
		assert.Contains(t, out, "99.9")
	})

	t.Run("escapes hostile content", func(t *testing.T) {
		model := testModel(t)
		model.CustomerName = `<script>alert("x")</script>`
		model.Heading = "Quote " + model.Number

		out, err := producer.Produce(ctx, &model, document.Options{})
		require.NoError(t, err)
		assert.NotContains(t, out, `<script>alert`)
	})

	t.Run("rejects a nil model", func(t *testing.T) {
		_, err := producer.Produce(ctx, nil, document.Options{})
		require.Error(t, err)
		assert.Equal(t, document.KindValidationError, document.KindOf(err))
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		model := testModel(t)
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := producer.Produce(cancelled, &model, document.Options{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestProducer_ExcludedSections(t *testing.T) {
	producer, err := NewProducer()
	require.NoError(t, err)

	raw := testModel(t)
	model, err := document.BuildModel(raw, document.Options{
		IncludeSections: map[string]bool{"sla": false},
	})
	require.NoError(t, err)

	out, err := producer.Produce(context.Background(), &model, document.Options{})
	require.NoError(t, err)
	assert.NotContains(t, out, "Service Levels")
}
