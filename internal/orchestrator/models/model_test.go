package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionValid(t *testing.T) {
	for _, a := range []Action{ActionExtractDetails, ActionQueryStatus, ActionHandleException, ActionRespondDirectly} {
		assert.True(t, a.Valid(), string(a))
	}
	assert.False(t, Action("").Valid())
	assert.False(t, Action("DELETE_ORDER").Valid())
	assert.False(t, Action("extract_details").Valid())
}

func TestHasOrderDetails(t *testing.T) {
	assert.False(t, ConversationContext{}.HasOrderDetails())
	assert.False(t, ConversationContext{OrderNumber: "12345"}.HasOrderDetails())
	assert.False(t, ConversationContext{OrderType: "books"}.HasOrderDetails())
	assert.True(t, ConversationContext{OrderNumber: "12345", OrderType: "books"}.HasOrderDetails())
}

func TestIsCapabilityUnavailable(t *testing.T) {
	assert.True(t, IsCapabilityUnavailable("query_order_status capability unavailable: store not initialized"))
	assert.False(t, IsCapabilityUnavailable("failed to parse extraction result"))
	assert.False(t, IsCapabilityUnavailable(""))
}

func TestStatusResultJSONKeys(t *testing.T) {
	raw, err := json.Marshal(StatusResult{
		Status:        StatusSuccess,
		OrderNumber:   "12345",
		BackendStatus: "Shipped",
	})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "Shipped", m["order_status_from_backend"])
	assert.Equal(t, "success", m["status"])
	assert.NotContains(t, m, "error")
}
