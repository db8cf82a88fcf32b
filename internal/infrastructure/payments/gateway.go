// Package payments wraps the external payment processor.
package payments

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Status is the processor-neutral state of a payment intent.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IntentRequest describes a checkout to open with the processor.
type IntentRequest struct {
	AmountMinor int64 // smallest currency unit
	Currency    string
	Receipt     string
	Metadata    map[string]string
}

// Intent is the processor's view of a created checkout.
type Intent struct {
	ID           string `json:"id"`
	Status       Status `json:"status"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// Gateway abstracts payment intent creation and status lookup for testability.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetStatus(ctx context.Context, intentID string) (Status, error)
}

const receiptAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewReceipt returns a receipt id of the form rcpt_<6 random chars>_<unix millis>.
func NewReceipt(now time.Time) string {
	b := make([]byte, 6)
	max := big.NewInt(int64(len(receiptAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			b[i] = receiptAlphabet[i]
			continue
		}
		b[i] = receiptAlphabet[n.Int64()]
	}
	return fmt.Sprintf("rcpt_%s_%d", b, now.UnixMilli())
}
