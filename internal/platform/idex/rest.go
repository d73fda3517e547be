// Package idex implements the REST and WebSocket clients for the exchange
// API: public market data endpoints plus authenticated trade endpoints.
package idex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/idexbot/internal/crypto"
	"github.com/alanyoungcy/idexbot/internal/domain"
)

// RESTClient is the HTTP client for the exchange REST API. Public endpoints
// work without credentials; trade endpoints require an HMAC key pair and a
// wallet signer.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
}

// NewRESTClient creates a REST client.
//
// baseURL is the API root, e.g. "https://api-matic.idex.io/v1". signer and
// hmac may be nil for market-data-only use.
func NewRESTClient(baseURL string, signer *crypto.Signer, hmac *crypto.HMACAuth) *RESTClient {
	return &RESTClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:   signer,
		hmacAuth: hmac,
	}
}

// FetchOrderBookL2 retrieves a level-2 order book snapshot. limit is the
// maximum number of levels per side and must be within [2, 1000];
// includePool requests the market's pool reserves alongside the limit book.
func (c *RESTClient) FetchOrderBookL2(ctx context.Context, market string, limit int, includePool bool) (*domain.L2OrderBook, error) {
	if limit < 2 || limit > 1000 {
		return nil, fmt.Errorf("idex: orderbook limit %d outside [2, 1000]: %w", limit, domain.ErrInvalidArgument)
	}

	query := url.Values{}
	query.Set("market", market)
	query.Set("level", "2")
	query.Set("limit", strconv.Itoa(limit))
	if includePool {
		query.Set("includePool", "true")
	}

	respBody, err := c.doPublicRequest(ctx, "/orderbook", query)
	if err != nil {
		return nil, fmt.Errorf("idex: orderbook %s: %w", market, err)
	}

	var api APIOrderBook
	if err := json.Unmarshal(respBody, &api); err != nil {
		return nil, fmt.Errorf("idex: decode orderbook: %w", err)
	}

	return api.ToDomainL2()
}

// FetchFeeRates retrieves the exchange-wide taker fee configuration.
func (c *RESTClient) FetchFeeRates(ctx context.Context) (domain.FeeRates, error) {
	respBody, err := c.doPublicRequest(ctx, "/exchange", nil)
	if err != nil {
		return domain.FeeRates{}, fmt.Errorf("idex: exchange info: %w", err)
	}

	var api APIExchangeInfo
	if err := json.Unmarshal(respBody, &api); err != nil {
		return domain.FeeRates{}, fmt.Errorf("idex: decode exchange info: %w", err)
	}

	return api.ToDomainFeeRates()
}

// FetchAssetPrices retrieves the native-asset price of every listed token.
func (c *RESTClient) FetchAssetPrices(ctx context.Context) ([]domain.TokenPrice, error) {
	respBody, err := c.doPublicRequest(ctx, "/assets", nil)
	if err != nil {
		return nil, fmt.Errorf("idex: assets: %w", err)
	}

	var apiAssets []APIAsset
	if err := json.Unmarshal(respBody, &apiAssets); err != nil {
		return nil, fmt.Errorf("idex: decode assets: %w", err)
	}

	prices := make([]domain.TokenPrice, 0, len(apiAssets))
	for i := range apiAssets {
		tp, err := apiAssets[i].ToDomainTokenPrice()
		if err != nil {
			return nil, err
		}
		prices = append(prices, tp)
	}

	return prices, nil
}

// PlaceOrder signs and submits an order. The nonce is a fresh UUID covering
// replay protection; the wallet signature proves custody of the trading
// wallet.
func (c *RESTClient) PlaceOrder(ctx context.Context, order domain.Order) (domain.OrderResult, error) {
	if c.signer == nil || c.hmacAuth == nil {
		return domain.OrderResult{}, fmt.Errorf("idex: place order: credentials not configured: %w", domain.ErrInvalidArgument)
	}

	nonce := uuid.New()
	wallet := c.signer.Address()

	signature, err := c.signer.SignOrder(
		nonce, wallet, order.Market,
		sideByte(order.Side), typeByte(order.Type),
		order.Quantity, order.Price,
	)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("idex: place order: %w: %w", domain.ErrSigningFailed, err)
	}

	body := apiOrderRequest{
		Parameters: apiOrderParameters{
			Nonce:    nonce.String(),
			Wallet:   wallet.Hex(),
			Market:   order.Market,
			Type:     string(order.Type),
			Side:     string(order.Side),
			Quantity: order.Quantity,
			Price:    order.Price,
		},
		Signature: signature,
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/orders", body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("idex: place order: %w", err)
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("idex: decode order result: %w", err)
	}

	result := apiResult.ToDomainOrderResult()
	if !result.Success {
		return result, fmt.Errorf("idex: order rejected: %s", result.Message)
	}

	return result, nil
}

// CancelOrder signs and submits a cancellation for a single order ID.
func (c *RESTClient) CancelOrder(ctx context.Context, orderID string) error {
	if c.signer == nil || c.hmacAuth == nil {
		return fmt.Errorf("idex: cancel order: credentials not configured: %w", domain.ErrInvalidArgument)
	}

	nonce := uuid.New()
	wallet := c.signer.Address()

	signature, err := c.signer.SignCancel(nonce, wallet, orderID)
	if err != nil {
		return fmt.Errorf("idex: cancel order: %w: %w", domain.ErrSigningFailed, err)
	}

	body := apiCancelRequest{
		Parameters: apiCancelParameters{
			Nonce:   nonce.String(),
			Wallet:  wallet.Hex(),
			OrderID: orderID,
		},
		Signature: signature,
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/orders", body)
	if err != nil {
		return fmt.Errorf("idex: cancel order %s: %w", orderID, err)
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return fmt.Errorf("idex: decode cancel response: %w", err)
	}
	if apiResult.ErrorMsg != "" {
		return fmt.Errorf("idex: cancel failed: %s", apiResult.ErrorMsg)
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doPublicRequest sends an unauthenticated GET and reads the response body.
func (c *RESTClient) doPublicRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.send(req)
}

// doAuthenticatedRequest builds, HMAC-signs, sends, and reads a trade
// endpoint request.
func (c *RESTClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	for k, v := range c.hmacAuth.AuthHeaders(string(jsonBody)) {
		req.Header.Set(k, v)
	}

	return c.send(req)
}

func (c *RESTClient) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", domain.ErrInvalidArgument, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
