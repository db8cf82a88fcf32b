package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func newStripeTestServer(t *testing.T, status string) (*httptest.Server, *url.Values) {
	captured := &url.Values{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/payment_intents":
			body, _ := io.ReadAll(r.Body)
			vals, _ := url.ParseQuery(string(body))
			*captured = vals
			captured.Set("Idempotency-Key", r.Header.Get("Idempotency-Key"))
			fmt.Fprint(w, `{"id":"pi_123","object":"payment_intent","status":"requires_payment_method","client_secret":"pi_123_secret_abc","amount":3000,"currency":"inr"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/payment_intents/pi_123":
			fmt.Fprintf(w, `{"id":"pi_123","object":"payment_intent","status":%q}`, status)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"No such payment_intent"}}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newTestGateway(srv *httptest.Server) *StripeGateway {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeGatewayWithBackend("sk_test_123", backend)
}

func TestStripeGateway_CreateIntent(t *testing.T) {
	srv, captured := newStripeTestServer(t, "succeeded")
	g := newTestGateway(srv)

	intent, err := g.CreateIntent(context.Background(), IntentRequest{
		AmountMinor: 3000, Currency: "INR", Receipt: "rcpt_abc123_1",
		Metadata: map[string]string{"user_id": "user-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, StatusPending, intent.Status)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)

	assert.Equal(t, "3000", captured.Get("amount"))
	assert.Equal(t, "inr", captured.Get("currency"))
	assert.Equal(t, "rcpt_abc123_1", captured.Get("metadata[receipt]"))
	assert.Equal(t, "user-1", captured.Get("metadata[user_id]"))
	assert.Equal(t, "rcpt_abc123_1", captured.Get("Idempotency-Key"))
}

func TestStripeGateway_GetStatus(t *testing.T) {
	for stripeStatus, want := range map[string]Status{
		"succeeded":       StatusCompleted,
		"canceled":        StatusFailed,
		"processing":      StatusPending,
		"requires_action": StatusPending,
	} {
		srv, _ := newStripeTestServer(t, stripeStatus)
		got, err := newTestGateway(srv).GetStatus(context.Background(), "pi_123")
		require.NoError(t, err)
		assert.Equal(t, want, got, stripeStatus)
	}
}

func TestStripeGateway_UnknownIntent(t *testing.T) {
	srv, _ := newStripeTestServer(t, "succeeded")
	_, err := newTestGateway(srv).GetStatus(context.Background(), "pi_missing")
	assert.Error(t, err)
}

func TestStripeGateway_NotConfigured(t *testing.T) {
	g := NewStripeGateway("")
	_, err := g.CreateIntent(context.Background(), IntentRequest{AmountMinor: 100, Currency: "inr"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSignatureVerifier(t *testing.T) {
	v := &SignatureVerifier{Secret: "shh"}
	mac := hmac.New(sha256.New, []byte("shh"))
	mac.Write([]byte("order_1|pay_1"))
	expected := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, expected, v.Sign("order_1", "pay_1"))
	assert.True(t, v.Verify("order_1", "pay_1", expected))
	assert.False(t, v.Verify("order_1", "pay_2", expected))
	assert.False(t, v.Verify("order_1", "pay_1", ""))
	assert.False(t, (&SignatureVerifier{}).Verify("order_1", "pay_1", expected))
}

func TestNewReceipt(t *testing.T) {
	r := NewReceipt(time.UnixMilli(1700000000123))
	assert.Regexp(t, regexp.MustCompile(`^rcpt_[a-z0-9]{6}_1700000000123$`), r)
}

func signPayload(payload []byte, secret string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestParseWebhook(t *testing.T) {
	body := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_9","object":"payment_intent","status":"succeeded","metadata":{"shares":"3"}}}}`)

	_, err := ParseWebhook(body, "", "whsec")
	assert.Error(t, err)
	_, err = ParseWebhook(body, "t=123,v1=invalid", "whsec")
	assert.Error(t, err)

	event, err := ParseWebhook(body, signPayload(body, "whsec"), "whsec")
	require.NoError(t, err)
	assert.Equal(t, EventPaymentIntentSucceeded, string(event.Type))

	pi, err := PaymentIntentFromEvent(event)
	require.NoError(t, err)
	assert.Equal(t, "pi_9", pi.ID)
	assert.Equal(t, "3", pi.Metadata["shares"])
	assert.True(t, strings.HasPrefix(pi.ID, "pi_"))
}
