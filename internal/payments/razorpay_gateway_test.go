package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking/pkg/logging"
)

type stubOrders struct {
	created map[string]interface{}
	body    map[string]interface{}
	err     error
	delay   time.Duration
}

func (s *stubOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	s.created = data
	return s.respond()
}

func (s *stubOrders) Fetch(_ string, _ map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	return s.respond()
}

func (s *stubOrders) respond() (map[string]interface{}, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.body, s.err
}

func TestRazorpayGatewayCreateOrder(t *testing.T) {
	orders := &stubOrders{body: map[string]interface{}{
		"id": "order_abc", "amount": float64(50000), "currency": "INR", "receipt": "appt-1", "status": "created",
	}}
	gw := newRazorpayGateway(orders, time.Second, logging.Default())

	order, err := gw.CreateOrder(context.Background(), OrderRequest{
		Amount: 50000, Currency: "INR", Receipt: "appt-1", Notes: map[string]string{"doctor_id": "doc-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, &Order{ID: "order_abc", Amount: 50000, Currency: "INR", Receipt: "appt-1", Status: "created"}, order)
	assert.Equal(t, int64(50000), orders.created["amount"])
	assert.Equal(t, "appt-1", orders.created["receipt"])
	assert.Equal(t, map[string]interface{}{"doctor_id": "doc-1"}, orders.created["notes"])
}

func TestRazorpayGatewayFetchNotFound(t *testing.T) {
	orders := &stubOrders{err: errors.New("BAD_REQUEST_ERROR: The id provided does not exist")}
	gw := newRazorpayGateway(orders, time.Second, logging.Default())

	_, err := gw.FetchOrder(context.Background(), "order_missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestRazorpayGatewayTimesOut(t *testing.T) {
	orders := &stubOrders{delay: 200 * time.Millisecond, body: map[string]interface{}{"id": "order_slow"}}
	gw := newRazorpayGateway(orders, 20*time.Millisecond, logging.Default())

	_, err := gw.FetchOrder(context.Background(), "order_slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrderFromMapRequiresID(t *testing.T) {
	_, err := orderFromMap(map[string]interface{}{"status": "paid"})
	assert.Error(t, err)
}
