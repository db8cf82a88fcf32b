package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	adminsvc "unicarbon-backend/internal/application/admin"
	"unicarbon-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOperator struct {
	amount  decimal.Decimal
	project string
	status  string
}

func (f *fakeOperator) ProjectComplete(ctx context.Context, amount decimal.Decimal, projectName string) (*adminsvc.TxResult, error) {
	f.amount, f.project = amount, projectName
	if projectName == "" {
		return nil, domain.NewError(domain.KindValidation, "Invalid amount or projectName")
	}
	return &adminsvc.TxResult{TxHash: "0x10", BlockNumber: 9}, nil
}

func (f *fakeOperator) Withdraw(ctx context.Context) (*adminsvc.TxResult, error) {
	return nil, domain.NewError(domain.KindTransactionFailed, "Transaction failed").WithTx("0x11")
}

func (f *fakeOperator) Price(ctx context.Context) (*adminsvc.Price, error) {
	return &adminsvc.Price{Wei: "5000000000000000", Ether: "0.005"}, nil
}

func (f *fakeOperator) Pending(ctx context.Context, status string) (*adminsvc.Queue, error) {
	f.status = status
	return &adminsvc.Queue{Submissions: []domain.ChainSubmission{{TxHash: "0x12"}}}, nil
}

func newApp(op *fakeOperator) *fiber.App {
	h := &Handlers{Service: op}
	app := fiber.New()
	app.Post("/admin/project-complete", h.ProjectComplete)
	app.Post("/admin/withdraw", h.Withdraw)
	app.Get("/admin/price", h.Price)
	app.Get("/admin/submissions", h.Submissions)
	return app
}

func decode(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestProjectComplete(t *testing.T) {
	op := &fakeOperator{}
	app := newApp(op)
	b, _ := json.Marshal(map[string]interface{}{"amount": "100", "projectName": "Sundarbans"})
	req := httptest.NewRequest("POST", "/admin/project-complete", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := decode(t, resp.Body)
	assert.Equal(t, "0x10", out["data"].(map[string]interface{})["txHash"])
	assert.True(t, op.amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "Sundarbans", op.project)
}

func TestWithdraw_Failure(t *testing.T) {
	resp, err := newApp(&fakeOperator{}).Test(httptest.NewRequest("POST", "/admin/withdraw", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "0x11", decode(t, resp.Body)["txHash"])
}

func TestPrice(t *testing.T) {
	resp, err := newApp(&fakeOperator{}).Test(httptest.NewRequest("GET", "/admin/price", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "0.005", decode(t, resp.Body)["data"].(map[string]interface{})["ether"])
}

func TestSubmissions(t *testing.T) {
	op := &fakeOperator{}
	resp, err := newApp(op).Test(httptest.NewRequest("GET", "/admin/submissions?status=pending", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", op.status)
	out := decode(t, resp.Body)
	assert.Equal(t, float64(1), out["metadata"].(map[string]interface{})["submissions"])
}
