package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_FullMatrix(t *testing.T) {
	statuses := []OrderStatus{StatusPending, StatusCompleted, StatusCancelled}
	allowed := map[[2]OrderStatus]bool{
		{StatusPending, StatusCompleted}: true,
		{StatusPending, StatusCancelled}: true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			got := CanTransition(from, to)
			assert.Equal(t, allowed[[2]OrderStatus{from, to}], got, "%s -> %s", from, to)
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"Pending", "Completed", "Cancelled"} {
		got, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, OrderStatus(s), got)
	}

	_, err := ParseStatus("Preparing")
	require.Error(t, err)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
