package payments

import (
	"context"

	"github.com/wolfman30/clinic-booking/internal/apperr"
)

// Order is an external payment order as reported by the gateway.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Paid reports whether the gateway considers the order settled.
func (o *Order) Paid() bool { return o.Status == OrderStatusPaid }

// Gateway order statuses.
const (
	OrderStatusCreated   = "created"
	OrderStatusAttempted = "attempted"
	OrderStatusPaid      = "paid"
)

// OrderRequest describes an order to create.
type OrderRequest struct {
	Amount   int64 // minor units
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Gateway creates and fetches orders with an external payment provider.
type Gateway interface {
	Name() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
}

// ErrOrderNotFound is returned by gateways for unknown order ids.
var ErrOrderNotFound = apperr.NotFound("No order found with the provided order id.")
