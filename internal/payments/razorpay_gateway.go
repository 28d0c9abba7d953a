package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/razorpay/razorpay-go"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const defaultGatewayTimeout = 10 * time.Second

// razorpayOrders is the part of the razorpay-go order resource we call.
type razorpayOrders interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
	Fetch(orderID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayGateway talks to Razorpay's Orders API. The client library is not
// context aware, so each call runs in its own goroutine bounded by timeout.
type RazorpayGateway struct {
	orders  razorpayOrders
	timeout time.Duration
	logger  *logging.Logger
}

func NewRazorpayGateway(keyID, keySecret string, timeout time.Duration, logger *logging.Logger) *RazorpayGateway {
	if keyID == "" || keySecret == "" {
		panic("payments: razorpay key id and secret required")
	}
	client := razorpay.NewClient(keyID, keySecret)
	return newRazorpayGateway(client.Order, timeout, logger)
}

func newRazorpayGateway(orders razorpayOrders, timeout time.Duration, logger *logging.Logger) *RazorpayGateway {
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RazorpayGateway{orders: orders, timeout: timeout, logger: logger}
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}
	if len(req.Notes) > 0 {
		notes := make(map[string]interface{}, len(req.Notes))
		for k, v := range req.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	body, err := g.call(ctx, func() (map[string]interface{}, error) {
		return g.orders.Create(data, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("payments: razorpay create order: %w", err)
	}
	return orderFromMap(body)
}

func (g *RazorpayGateway) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	body, err := g.call(ctx, func() (map[string]interface{}, error) {
		return g.orders.Fetch(orderID, nil, nil)
	})
	if err != nil {
		if isRazorpayNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("payments: razorpay fetch order: %w", err)
	}
	return orderFromMap(body)
}

type callResult struct {
	body map[string]interface{}
	err  error
}

func (g *RazorpayGateway) call(ctx context.Context, fn func() (map[string]interface{}, error)) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		body, err := fn()
		done <- callResult{body: body, err: err}
	}()

	select {
	case res := <-done:
		return res.body, res.err
	case <-ctx.Done():
		g.logger.Warn("razorpay call abandoned", "error", ctx.Err())
		return nil, ctx.Err()
	}
}

// isRazorpayNotFound matches the BAD_REQUEST_ERROR Razorpay returns for unknown ids.
func isRazorpayNotFound(err error) bool {
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "not found")
}

func orderFromMap(body map[string]interface{}) (*Order, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("payments: gateway response missing order id")
	}
	o := &Order{ID: id}
	o.Currency, _ = body["currency"].(string)
	o.Receipt, _ = body["receipt"].(string)
	o.Status, _ = body["status"].(string)
	switch v := body["amount"].(type) {
	case float64:
		o.Amount = int64(v)
	case int64:
		o.Amount = v
	case int:
		o.Amount = int64(v)
	}
	return o, nil
}

var _ Gateway = (*RazorpayGateway)(nil)
