package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesVariables(t *testing.T) {
	tmpl, ok := Render(EventOrderReady, map[string]string{"orderCode": "AB12CD34"})
	require.True(t, ok)
	assert.Equal(t, "Order AB12CD34 ready for pickup", tmpl.Title)
	assert.Contains(t, tmpl.Message, "AB12CD34")
	assert.NotContains(t, tmpl.Message, "{{")
}

func TestRenderUnknownEvent(t *testing.T) {
	_, ok := Render("order.teleported", nil)
	assert.False(t, ok)
}

func TestRenderCoversAllEvents(t *testing.T) {
	for _, event := range []string{
		EventOrderCreated, EventOrderPaid, EventOrderPreparing,
		EventOrderReady, EventOrderCompleted, EventOrderCancelled,
	} {
		_, ok := Render(event, map[string]string{"orderCode": "X"})
		assert.True(t, ok, event)
	}
}
