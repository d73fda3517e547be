package domain

import (
	"math/big"
	"time"
)

// TokenPrice is the latest price of an asset in terms of the exchange's
// native asset. Price is nil when the exchange has no price for the token.
type TokenPrice struct {
	Token string
	Price *big.Int
}

// L1Update is a recorded top-of-book change, persisted by the market data
// recorder for later analysis and archival.
type L1Update struct {
	ID           int64
	Market       string
	Sequence     uint64
	BidPrice     string
	BidSize      string
	AskPrice     string
	AskSize      string
	BaseReserve  string
	QuoteReserve string
	Timestamp    time.Time
}

// OrderSide is the taker direction of a placed order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType is the exchange order type.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// Order is a request to place an order on the exchange. Quantity and Price
// are decimal strings as required by the REST API.
type Order struct {
	Market   string
	Side     OrderSide
	Type     OrderType
	Quantity string
	Price    string
	Wallet   string
}

// OrderResult is the exchange's response to an order placement.
type OrderResult struct {
	OrderID string
	Status  string
	Success bool
	Message string
}
