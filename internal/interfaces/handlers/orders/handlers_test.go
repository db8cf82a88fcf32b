package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	ordersvc "unicarbon-backend/internal/application/orders"
	"unicarbon-backend/internal/application/settlement"
	"unicarbon-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	in  ordersvc.CreateInput
	err error
}

func (f *fakeOrders) Create(ctx context.Context, in ordersvc.CreateInput) (*ordersvc.CreateResult, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &ordersvc.CreateResult{IntentID: "pi_123", Amount: 3000, Currency: "INR", Receipt: "rcpt_abc123_1"}, nil
}

func (f *fakeOrders) Get(ctx context.Context, orderID string) (*domain.Payment, error) {
	if orderID != "pi_123" {
		return nil, domain.NewError(domain.KindNotFound, "Order not found")
	}
	return &domain.Payment{OrderID: orderID, Status: domain.PaymentCreated}, nil
}

type fakeConfirmer struct {
	in  settlement.ConfirmInput
	err error
}

func (f *fakeConfirmer) Confirm(ctx context.Context, in settlement.ConfirmInput) (*settlement.ConfirmResult, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &settlement.ConfirmResult{TxHash: "0xfeed", Status: domain.PaymentSuccess}, nil
}

func newApp(h *Handlers) *fiber.App {
	app := fiber.New()
	app.Post("/orders", h.Create)
	app.Post("/orders/verify", h.Verify)
	app.Get("/orders/:orderId", h.Get)
	return app
}

func post(t *testing.T, app *fiber.App, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	b, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestCreate_ReturnsIntent(t *testing.T) {
	orders := &fakeOrders{}
	app := newApp(&Handlers{Orders: orders})

	status, out := post(t, app, "/orders", map[string]interface{}{
		"userId": "u1", "propertyId": "8f14e45f-ceea-467f-a0e6-3b1f2b2d6a11", "shares": 3,
	})
	assert.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, true, out["success"])
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "pi_123", data["intentId"])
	assert.Equal(t, float64(3000), data["amount"])
	assert.Equal(t, "INR", data["currency"])
	assert.Equal(t, int64(3), orders.in.Shares)
}

func TestCreate_MapsInventoryError(t *testing.T) {
	app := newApp(&Handlers{Orders: &fakeOrders{err: domain.NewError(domain.KindInsufficientInventory, "Not enough shares available")}})
	status, out := post(t, app, "/orders", map[string]interface{}{"userId": "u1"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "InsufficientInventory", out["code"])
}

func TestCreate_BadBody(t *testing.T) {
	app := newApp(&Handlers{Orders: &fakeOrders{}})
	req := httptest.NewRequest("POST", "/orders", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestVerify_Success(t *testing.T) {
	conf := &fakeConfirmer{}
	app := newApp(&Handlers{Settlement: conf})
	status, out := post(t, app, "/orders/verify", map[string]interface{}{
		"orderId": "pi_123", "paymentId": "pay_1", "userId": "u1",
		"propertyId": "8f14e45f-ceea-467f-a0e6-3b1f2b2d6a11", "shares": 3,
	})
	assert.Equal(t, fiber.StatusOK, status)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "0xfeed", data["txHash"])
	assert.Equal(t, "success", data["status"])
	assert.Equal(t, "pi_123", conf.in.OrderID)
	assert.False(t, conf.in.GatewayVerified)
}

func TestVerify_ClientCannotClaimGatewayVerification(t *testing.T) {
	conf := &fakeConfirmer{}
	app := newApp(&Handlers{Settlement: conf})
	post(t, app, "/orders/verify", map[string]interface{}{"orderId": "pi_123", "GatewayVerified": true})
	assert.False(t, conf.in.GatewayVerified)
}

func TestVerify_ChainFailureCarriesTxHash(t *testing.T) {
	err := domain.NewError(domain.KindChainSettlementFailed, "Completion transaction reverted").WithTx("0xdead")
	app := newApp(&Handlers{Settlement: &fakeConfirmer{err: err}})
	status, out := post(t, app, "/orders/verify", map[string]interface{}{"orderId": "pi_123"})
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, "0xdead", out["txHash"])
}

func TestVerify_PendingIsAccepted(t *testing.T) {
	err := domain.NewError(domain.KindChainPending, "Transaction not yet confirmed").WithTx("0xbeef")
	app := newApp(&Handlers{Settlement: &fakeConfirmer{err: err}})
	status, out := post(t, app, "/orders/verify", map[string]interface{}{"orderId": "pi_123"})
	assert.Equal(t, fiber.StatusAccepted, status)
	assert.Equal(t, "ChainPending", out["code"])
}

func TestGet(t *testing.T) {
	app := newApp(&Handlers{Orders: &fakeOrders{}})
	resp, err := app.Test(httptest.NewRequest("GET", "/orders/pi_123", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/orders/pi_missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
