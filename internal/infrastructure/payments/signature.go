package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureVerifier checks client-reported payment outcomes signed as
// hex(HMAC-SHA256(secret, orderId + "|" + paymentId)).
type SignatureVerifier struct {
	Secret string
}

// Sign returns the expected signature for the pair.
func (v *SignatureVerifier) Sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature to the expected value in constant time.
func (v *SignatureVerifier) Verify(orderID, paymentID, signature string) bool {
	if v == nil || v.Secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(v.Sign(orderID, paymentID)), []byte(signature))
}
