package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	stats := Summarize([]Order{
		{Status: StatusPending, TotalAmount: decimal.RequireFromString("10.00"), CreatedAt: day2},
		{Status: StatusCompleted, TotalAmount: decimal.RequireFromString("25.50"), CreatedAt: day1},
		{Status: StatusCancelled, TotalAmount: decimal.RequireFromString("99.99"), CreatedAt: day1},
		{Status: StatusShipped, TotalAmount: decimal.RequireFromString("4.50"), CreatedAt: day2},
	})

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[StatusPending])
	assert.Equal(t, 1, stats.ByStatus[StatusCancelled])
	assert.Equal(t, 0, stats.ByStatus[StatusProcessing])
	assert.Equal(t, "40.00", stats.Sales.StringFixed(2))

	require.Len(t, stats.Daily, 2)
	assert.Equal(t, "2024-03-01", stats.Daily[0].Date)
	assert.Equal(t, 2, stats.Daily[0].Orders)
	assert.Equal(t, "25.50", stats.Daily[0].Sales.StringFixed(2))
	assert.Equal(t, "2024-03-02", stats.Daily[1].Date)
	assert.Equal(t, "14.50", stats.Daily[1].Sales.StringFixed(2))
}

func TestSummarizeEmpty(t *testing.T) {
	stats := Summarize(nil)
	assert.Zero(t, stats.Total)
	assert.True(t, stats.Sales.IsZero())
	assert.Empty(t, stats.Daily)
	assert.Len(t, stats.ByStatus, len(Statuses))
}
