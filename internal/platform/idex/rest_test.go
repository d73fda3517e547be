package idex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/idexbot/internal/crypto"
	"github.com/alanyoungcy/idexbot/internal/domain"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestFetchOrderBookL2(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orderbook", r.URL.Path)
		assert.Equal(t, "ETH-USD", r.URL.Query().Get("market"))
		assert.Equal(t, "2", r.URL.Query().Get("level"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "true", r.URL.Query().Get("includePool"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"sequence": 100,
			"bids": [["1.99000000","10.00000000",2]],
			"asks": [["2.01000000","5.00000000",1]],
			"pool": {"baseReserveQuantity":"1000.00000000","quoteReserveQuantity":"2000.00000000"}
		}`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, nil, nil)
	book, err := client.FetchOrderBookL2(context.Background(), "ETH-USD", 50, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), book.Sequence)
	require.NotNil(t, book.Pool)
}

func TestFetchOrderBookL2LimitValidation(t *testing.T) {
	client := NewRESTClient("http://unused", nil, nil)

	_, err := client.FetchOrderBookL2(context.Background(), "ETH-USD", 1, false)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = client.FetchOrderBookL2(context.Background(), "ETH-USD", 1001, false)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestFetchFeeRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exchange", r.URL.Path)
		w.Write([]byte(`{
			"takerIdexFeeRate": "0.00050000",
			"takerLiquidityProviderFeeRate": "0.00200000",
			"takerTradeMinimum": "0.10000000"
		}`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, nil, nil)
	rates, err := client.FetchFeeRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), rates.IdexFeeRate.Int64())
}

func TestFetchAssetPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assets", r.URL.Path)
		w.Write([]byte(`[
			{"symbol":"ETH","maticPrice":"2891.01000000"},
			{"symbol":"DUST","maticPrice":null}
		]`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, nil, nil)
	prices, err := client.FetchAssetPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, int64(2891_01000000), prices[0].Price.Int64())
	assert.Nil(t, prices[1].Price)
}

func TestPlaceOrderSignsAndAuthenticates(t *testing.T) {
	signer, err := crypto.NewSigner(testKeyHex)
	require.NoError(t, err)
	auth := &crypto.HMACAuth{Key: "test-key", Secret: "test-secret"}

	var captured apiOrderRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("IDEX-API-Key"))
		assert.NotEmpty(t, r.Header.Get("IDEX-HMAC-Signature"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"orderId":"abc-123","market":"ETH-USD","status":"open"}`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, signer, auth)
	result, err := client.PlaceOrder(context.Background(), domain.Order{
		Market:   "ETH-USD",
		Side:     domain.OrderSideBuy,
		Type:     domain.OrderTypeLimit,
		Quantity: "1.50000000",
		Price:    "2000.00000000",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "abc-123", result.OrderID)

	assert.Equal(t, signer.Address().Hex(), captured.Parameters.Wallet)
	assert.NotEmpty(t, captured.Parameters.Nonce)
	assert.Len(t, captured.Signature, 2+65*2)
}

func TestPlaceOrderWithoutCredentials(t *testing.T) {
	client := NewRESTClient("http://unused", nil, nil)
	_, err := client.PlaceOrder(context.Background(), domain.Order{Market: "ETH-USD"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCancelOrderRejection(t *testing.T) {
	signer, err := crypto.NewSigner(testKeyHex)
	require.NoError(t, err)
	auth := &crypto.HMACAuth{Key: "k", Secret: "s"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errorMsg":"order not found"}`))
	}))
	defer server.Close()

	client := NewRESTClient(server.URL, signer, auth)
	err = client.CancelOrder(context.Background(), "missing-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order not found")
}

func TestCheckHTTPStatus(t *testing.T) {
	assert.NoError(t, checkHTTPStatus(200, nil))
	assert.ErrorIs(t, checkHTTPStatus(404, []byte("no such market")), domain.ErrNotFound)
	assert.ErrorIs(t, checkHTTPStatus(400, []byte("bad limit")), domain.ErrInvalidArgument)
	assert.Error(t, checkHTTPStatus(500, []byte("boom")))
}
