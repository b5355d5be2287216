package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeItemOrder(t *testing.T) {
	body := []byte(`{"event":"item.order.purchased","payload":{"id":1001,"status":"pending","price_eur":"9.99","price_usd":"10.99","created_at":1700000000,"updated_at":1700000000}}`)

	event, err := Decode(body)
	require.NoError(t, err)

	assert.Equal(t, KindItemOrderPurchased, event.Kind)
	assert.Equal(t, int64(1001), event.Payload.ID)
	assert.Equal(t, StatusPending, event.Payload.Status)
	assert.Equal(t, "9.99", event.Payload.PriceEUR)
	assert.Equal(t, "10.99", event.Payload.PriceUSD)
	assert.Nil(t, event.Currency)
	assert.Equal(t, "item.order.purchased_1001", event.DedupKey())
	assert.NotEmpty(t, event.Raw)
}

func TestDecodeCurrencyOrderPopulatesVariant(t *testing.T) {
	body := []byte(`{"event":"currency.order.purchased","payload":{
		"id":42,"currency_offer_id":789,
		"game":{"id":1,"name":"Genshin Impact","slug":"genshin-impact"},
		"buyer":{"id":456,"username":"test_buyer"},
		"title":"1000 Genesis Crystals","description":"Fast delivery","quantity":1000,
		"currency_unit":{"slug":"genesis-crystals","currency_name":"Genesis Crystals","name":"Genesis Crystals","symbol":"GC","multiplier":1},
		"parameters":{},"status":"pending",
		"delivery_time":{"duration":30,"unit":"minutes","format":"30m","format_long":"30 minutes","seconds":1800},
		"credentials":{"uid":123456789},
		"price_eur":"15.99","price_usd":"17.99","unit_price_eur":"0.01599","unit_price_usd":"0.01799",
		"created_at":1700000000,"updated_at":1700000000}}`)

	event, err := Decode(body)
	require.NoError(t, err)
	require.NotNil(t, event.Currency)

	assert.Equal(t, "Genshin Impact", event.Currency.Game.Name)
	assert.Equal(t, "test_buyer", event.Currency.Buyer.Username)
	assert.Equal(t, int64(1000), event.Currency.Quantity)
	assert.Equal(t, "Genesis Crystals", event.Currency.CurrencyUnit.CurrencyName)
	assert.Equal(t, "30 minutes", event.Currency.DeliveryTime.FormatLong)
	require.NotNil(t, event.Currency.Credentials)
	assert.Equal(t, int64(123456789), event.Currency.Credentials.UID)
	assert.Nil(t, event.Currency.Rating)
}

func TestDecodeUnknownKindIsLegal(t *testing.T) {
	body := []byte(`{"event":"subscription.renewed","payload":{"id":7,"status":"active","price_eur":"1.00","price_usd":"1.10","created_at":1,"updated_at":1}}`)

	event, err := Decode(body)
	require.NoError(t, err)

	assert.Equal(t, Kind("subscription.renewed"), event.Kind)
	assert.False(t, event.Kind.Known())
	assert.Equal(t, "unknown", event.Kind.MetricLabel())
	assert.Equal(t, Status("active"), event.Payload.Status)
	assert.Nil(t, event.Currency)
}

func TestDecodeRejectsMalformedBodies(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"event":`,
		"missing event":   `{"payload":{"id":1}}`,
		"blank event":     `{"event":"  ","payload":{"id":1}}`,
		"missing payload": `{"event":"item.order.purchased"}`,
		"null payload":    `{"event":"item.order.purchased","payload":null}`,
		"missing id":      `{"event":"item.order.purchased","payload":{"status":"pending"}}`,
		"wrong id type":   `{"event":"item.order.purchased","payload":{"id":"abc"}}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPayload))
		})
	}
}

func TestKindKnown(t *testing.T) {
	for _, kind := range []Kind{
		KindCurrencyOrderPurchased,
		KindAccountOrderPurchased,
		KindItemOrderPurchased,
		KindOrderReportIssued,
	} {
		assert.True(t, kind.Known(), kind)
		assert.Equal(t, string(kind), kind.MetricLabel())
	}
	assert.False(t, Kind("").Known())
}
