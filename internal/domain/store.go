package domain

import (
	"context"
	"io"
	"math/big"
	"time"
)

// PriceCache stores the latest native-asset price per token.
type PriceCache interface {
	SetPrice(ctx context.Context, token string, price *big.Int, ts time.Time) error
	GetPrice(ctx context.Context, token string) (*big.Int, time.Time, error)
}

// L1UpdateStore persists recorded top-of-book changes.
type L1UpdateStore interface {
	InsertBatch(ctx context.Context, updates []L1Update) error
	ListBefore(ctx context.Context, before time.Time) ([]L1Update, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
