package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"unicarbon-backend/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return rdb
}

func decode(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	b, err := io.ReadAll(body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestRateLimiter_AllowsBurstThenRejects(t *testing.T) {
	rl := NewRateLimiter(RateLimit{RequestsPerMinute: 60, Burst: 2})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.clockNow = func() time.Time { return now }

	assert.True(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("1.1.1.1"))
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "limits are per client")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("1.1.1.1"), "one token refills per second")
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(RateLimit{RequestsPerMinute: 60, Burst: 1})
	now := time.Now()
	rl.clockNow = func() time.Time { return now }
	rl.Allow("a")
	now = now.Add(11 * time.Minute)
	rl.Allow("b")
	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.visitors, "a")
	assert.Contains(t, rl.visitors, "b")
}

func TestRateLimiter_Handler(t *testing.T) {
	app := fiber.New()
	app.Use(NewRateLimiter(RateLimit{RequestsPerMinute: 1, Burst: 1}).Handler())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, false, decode(t, resp.Body)["success"])
}

func TestRequireAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("operator-key"), bcrypt.MinCost)
	require.NoError(t, err)
	app := fiber.New()
	app.Get("/admin", RequireAdminKey(string(hash)), func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/admin", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set(AdminKeyHeader, "wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set(AdminKeyHeader, "operator-key")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRequireAdminKey_EmptyHashRejectsAll(t *testing.T) {
	app := fiber.New()
	app.Get("/admin", RequireAdminKey(""), func(c *fiber.Ctx) error { return c.SendString("ok") })
	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set(AdminKeyHeader, "anything")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestErrorHandler_RendersDomainErrorAndLogsServerErrors(t *testing.T) {
	rdb := newRedis(t)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(rdb)})
	app.Get("/pending", func(c *fiber.Ctx) error {
		return domain.NewError(domain.KindChainPending, "Transaction not yet confirmed").WithTx("0x01")
	})
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("boom") })
	app.Get("/missing", func(c *fiber.Ctx) error { return fiber.ErrNotFound })

	resp, err := app.Test(httptest.NewRequest("GET", "/pending", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
	out := decode(t, resp.Body)
	assert.Equal(t, "ChainPending", out["code"])
	assert.Equal(t, "0x01", out["txHash"])

	resp, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	entries, err := rdb.LRange(context.Background(), KeyErrorLog, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, entries, 2, "pending is not logged, unknown errors are, 404 is not")
	assert.Contains(t, entries[0], "boom")
}

func TestRecordError_CapsLog(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()
	for i := 0; i < errorLogSize+5; i++ {
		RecordError(ctx, rdb, "GET", "/x", "e")
	}
	n, err := rdb.LLen(ctx, KeyErrorLog).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(errorLogSize), n)
}

func TestHealthMarker_CountsRequests(t *testing.T) {
	rdb := newRedis(t)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(rdb)})
	app.Use(HealthMarker(rdb))
	app.Get("/api/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/api/fail", func(c *fiber.Ctx) error { return errors.New("ledger down") })
	app.Get("/health/json", func(c *fiber.Ctx) error { return c.SendString("{}") })

	for _, p := range []string{"/api/ok", "/api/fail", "/health/json"} {
		_, err := app.Test(httptest.NewRequest("GET", p, nil))
		require.NoError(t, err)
	}
	ctx := context.Background()
	total, _ := rdb.Get(ctx, KeyReqTotal).Int()
	failed, _ := rdb.Get(ctx, KeyReqErrors).Int()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, failed)
	last, _ := rdb.Get(ctx, KeyLastReq).Result()
	assert.Contains(t, last, "/api/fail")
}

func TestHealthMarker_NilRedis(t *testing.T) {
	app := fiber.New()
	app.Use(HealthMarker(nil))
	app.Get("/api", func(c *fiber.Ctx) error { return c.SendString("ok") })
	resp, err := app.Test(httptest.NewRequest("GET", "/api", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestTracing_ReusesValidInboundID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(GetTraceID(c)) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", "4f7d2d0c-2b59-4b4c-9e0b-7a3b4c1d9e11")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "4f7d2d0c-2b59-4b4c-9e0b-7a3b4c1d9e11", resp.Header.Get("X-Trace-Id"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", "not-a-uuid")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.NotEqual(t, "not-a-uuid", resp.Header.Get("X-Trace-Id"))
	assert.Len(t, resp.Header.Get("X-Trace-Id"), 36)
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(CORSConfig{AllowedSuffix: ".unicarbon.in", DevPassword: "dev"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://app.unicarbon.in")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://app.unicarbon.in", resp.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("dev-password", "dev")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
