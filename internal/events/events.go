package events

import (
	"context"
	"time"

	"github.com/alextreichler/detailacademy/internal/models"
)

// CheckoutCompleted is emitted once per record that reaches Paid.
type CheckoutCompleted struct {
	Kind          models.Kind `json:"kind"`
	RecordID      string      `json:"record_id"`
	TransactionID string      `json:"transaction_id"`
	AmountCents   int64       `json:"amount_cents"`
	Title         string      `json:"title"`
	CustomerEmail string      `json:"customer_email"`
	PaidAt        time.Time   `json:"paid_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev CheckoutCompleted) error
	Close() error
}
