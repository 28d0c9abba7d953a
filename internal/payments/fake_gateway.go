package payments

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

// FakeGateway is a dev/demo gateway that keeps orders in memory and lets the
// caller "pay" them through the fake payments page.
//
// This MUST be gated by configuration (ALLOW_FAKE_PAYMENTS) and should never be
// enabled in production.
type FakeGateway struct {
	mu     sync.Mutex
	orders map[string]*Order
	logger *logging.Logger
}

func NewFakeGateway(logger *logging.Logger) *FakeGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakeGateway{orders: make(map[string]*Order), logger: logger}
}

func (g *FakeGateway) Name() string { return "fake" }

func (g *FakeGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Receipt) == "" {
		return nil, fmt.Errorf("payments: fake order requires receipt")
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("payments: fake order requires positive amount")
	}
	o := &Order{
		ID:       "order_fake_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14],
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   OrderStatusCreated,
	}
	g.mu.Lock()
	g.orders[o.ID] = o
	g.mu.Unlock()

	g.logger.Info("fake order created", "order_id", o.ID, "receipt", o.Receipt, "amount", o.Amount)
	cp := *o
	return &cp, nil
}

func (g *FakeGateway) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

// Complete marks a fake order paid.
func (g *FakeGateway) Complete(orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = OrderStatusPaid
	return nil
}

var _ Gateway = (*FakeGateway)(nil)
