package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusTransitions(t *testing.T) {
	all := []OrderStatus{
		StatusPendingPayment, StatusPaid, StatusInPreparation,
		StatusReadyForPickup, StatusCompleted, StatusCancelled,
	}

	allowed := map[OrderStatus][]OrderStatus{
		StatusPendingPayment: {StatusPaid, StatusCancelled},
		StatusPaid:           {StatusInPreparation, StatusCancelled},
		StatusInPreparation:  {StatusReadyForPickup},
		StatusReadyForPickup: {StatusCompleted},
		StatusCompleted:      nil,
		StatusCancelled:      nil,
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPendingPayment.Terminal())
	assert.False(t, StatusPaid.Terminal())
	assert.False(t, StatusInPreparation.Terminal())
	assert.False(t, StatusReadyForPickup.Terminal())
}

func TestParseOrderStatus(t *testing.T) {
	s, ok := ParseOrderStatus("IN_PREPARATION")
	require.True(t, ok)
	assert.Equal(t, StatusInPreparation, s)

	_, ok = ParseOrderStatus("SHIPPED")
	assert.False(t, ok)
}

func TestParsePaymentMethod(t *testing.T) {
	m, ok := ParsePaymentMethod("SINPE_MOVIL")
	require.True(t, ok)
	assert.True(t, m.ManualMethod())

	m, ok = ParsePaymentMethod("CREDIT_CARD")
	require.True(t, ok)
	assert.False(t, m.ManualMethod())

	_, ok = ParsePaymentMethod("CASH")
	assert.False(t, ok)
}

func TestCentsFormatting(t *testing.T) {
	assert.Equal(t, "140.00", CentsFromUnits(140).String())
	assert.Equal(t, "10.50", Cents(1050).String())
	assert.Equal(t, "-3.07", Cents(-307).String())

	b, err := Cents(1050).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"10.50"`, string(b))

	var c Cents
	require.NoError(t, c.UnmarshalJSON([]byte(`"70.00"`)))
	assert.Equal(t, CentsFromUnits(70), c)
}
