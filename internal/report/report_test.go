package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/canteen-orders-go/internal/order/domain"
)

func TestParseRange(t *testing.T) {
	for _, s := range []string{"day", "week", "month"} {
		r, err := ParseRange(s)
		require.NoError(t, err)
		assert.Equal(t, Range(s), r)
	}

	for _, s := range []string{"", "year", "Day", "daily"} {
		_, err := ParseRange(s)
		var verr *domain.ValidationError
		assert.ErrorAs(t, err, &verr, "range %q", s)
	}
}

func TestSalesQueries_CoverEveryRange(t *testing.T) {
	for _, r := range []Range{RangeDay, RangeWeek, RangeMonth} {
		assert.Contains(t, salesQueries, r)
	}
}

func TestAscending_ReversesDescendingTrend(t *testing.T) {
	in := []DailyRevenue{
		{Date: "2026-08-28", RevenueCents: 300},
		{Date: "2026-08-27", RevenueCents: 200},
		{Date: "2026-08-26", RevenueCents: 100},
	}
	out := ascending(in)
	require.Len(t, out, 3)
	assert.Equal(t, "2026-08-26", out[0].Date)
	assert.Equal(t, "2026-08-28", out[2].Date)

	assert.Empty(t, ascending([]DailyRevenue{}))
}
