package quote

import (
	"testing"

	"github.com/google/uuid"
	"github.com/quotedesk/renderd/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuote(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		q, err := NewQuote("Q-2026-0042", "Acme Corp", valueobject.USD)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, q.ID)
		assert.Equal(t, StatusDraft, q.Status)
		assert.Equal(t, 1, q.Version)
	})

	t.Run("empty number", func(t *testing.T) {
		_, err := NewQuote("", "Acme Corp", valueobject.USD)
		assert.Error(t, err)
	})

	t.Run("empty customer", func(t *testing.T) {
		_, err := NewQuote("Q-1", "", valueobject.USD)
		assert.Error(t, err)
	})

	t.Run("unknown currency", func(t *testing.T) {
		_, err := NewQuote("Q-1", "Acme Corp", "XXX")
		assert.Error(t, err)
	})
}

func TestNewLineEntry_SubtotalDerivation(t *testing.T) {
	quoteID := uuid.New()
	price, _ := valueobject.NewMoneyFromString("12.50", valueobject.USD)

	entry, err := NewLineEntry(quoteID, 1, "Consulting hours", decimal.NewFromInt(3), price)
	require.NoError(t, err)

	assert.Equal(t, "37.50", entry.Subtotal.StringFixed(2))
	assert.Equal(t, "37.50", entry.SubtotalMoney(valueobject.USD).StringFixed())
}

func TestNewLineEntry_RoundsToMinorUnit(t *testing.T) {
	quoteID := uuid.New()
	price, _ := valueobject.NewMoneyFromString("0.333", valueobject.USD)

	entry, err := NewLineEntry(quoteID, 1, "Per-unit fee", decimal.NewFromInt(10), price)
	require.NoError(t, err)

	// 0.333 * 10 = 3.33 exactly at two minor-unit places
	assert.Equal(t, "3.33", entry.Subtotal.StringFixed(2))
}

func TestNewLineEntry_Validation(t *testing.T) {
	quoteID := uuid.New()
	price, _ := valueobject.NewMoneyFromString("10.00", valueobject.USD)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"nil quote id", func() error {
			_, err := NewLineEntry(uuid.Nil, 1, "x", decimal.NewFromInt(1), price)
			return err
		}},
		{"empty description", func() error {
			_, err := NewLineEntry(quoteID, 1, "", decimal.NewFromInt(1), price)
			return err
		}},
		{"zero quantity", func() error {
			_, err := NewLineEntry(quoteID, 1, "x", decimal.Zero, price)
			return err
		}},
		{"negative price", func() error {
			neg, _ := valueobject.NewMoneyFromString("-1.00", valueobject.USD)
			_, err := NewLineEntry(quoteID, 1, "x", decimal.NewFromInt(1), neg)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.fn())
		})
	}
}

func TestNewSectionGroup(t *testing.T) {
	quoteID := uuid.New()

	group, err := NewSectionGroup(quoteID, 1, "scope", "Project Scope")
	require.NoError(t, err)
	assert.Equal(t, "scope", group.Key)
	assert.Empty(t, group.Metrics)

	_, err = NewSectionGroup(quoteID, 1, "", "Untitled")
	assert.Error(t, err)

	_, err = NewSectionGroup(quoteID, 1, "scope", "")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusSent.IsValid())
	assert.False(t, Status("UNKNOWN").IsValid())
	assert.Equal(t, "ACCEPTED", StatusAccepted.String())
	assert.Len(t, AllStatuses(), 5)
}
