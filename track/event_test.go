package track

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_Valid(t *testing.T) {
	for _, s := range []OrderStatus{
		StatusPlaced, StatusAccepted, StatusPreparing,
		StatusOnTheWay, StatusDelivered, StatusCancelled,
	} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, OrderStatus("shipped").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestOrderStatus_Terminal(t *testing.T) {
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusOnTheWay.Terminal())
	assert.False(t, StatusPlaced.Terminal())
}

func TestOrderStatus_CanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{StatusPlaced, StatusAccepted, true},
		{StatusPlaced, StatusCancelled, true},
		{StatusPlaced, StatusDelivered, false},
		{StatusAccepted, StatusPreparing, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusPreparing, StatusOnTheWay, true},
		{StatusPreparing, StatusCancelled, false},
		{StatusOnTheWay, StatusDelivered, true},
		{StatusOnTheWay, StatusPlaced, false},
		{StatusDelivered, StatusPlaced, false},
		{StatusCancelled, StatusAccepted, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTopic_OrderID(t *testing.T) {
	id, ok := OrderTopic("order-1").OrderID()
	require.True(t, ok)
	assert.Equal(t, "order-1", id)

	_, ok = AreaTopic("loc-1").OrderID()
	assert.False(t, ok)

	_, ok = Topic("order:").OrderID()
	assert.False(t, ok, "empty order id is not a valid order topic")
}

func TestEncodeEnvelope_WireShape(t *testing.T) {
	data, err := EncodeEnvelope(MsgSubscribeOrder, SubscribeOrderPayload{OrderID: "order-1"})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `"subscribe_order"`, string(raw["type"]))
	assert.JSONEq(t, `{"orderId":"order-1"}`, string(raw["payload"]))
}

func TestConnected_AnonymousSerializesNullUser(t *testing.T) {
	data, err := json.Marshal(Connected{Authenticated: false})
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":null,"authenticated":false}`, string(data))
}
