package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the payment signature for an order/payment pair: hex-encoded
// HMAC-SHA256 of "orderID|paymentRef" under the gateway key secret.
func Sign(secret, orderID, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySig recomputes the expected signature locally and compares it against
// the supplied one in constant time. Client-asserted success is never
// trusted; a payment only counts when this check passes.
func VerifySig(secret, orderID, paymentRef, signature string) bool {
	expected := Sign(secret, orderID, paymentRef)
	return hmac.Equal([]byte(expected), []byte(signature))
}
