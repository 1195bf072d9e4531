// Package signature validates gateway-issued payment confirmations.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verify reports whether sig is the genuine gateway signature for the given
// session: the hex-encoded HMAC-SHA256 of "gatewayOrderID|gatewayPaymentID"
// under secret. Comparison is constant-time. Malformed input (empty field,
// non-hex or wrong-length signature) verifies as false rather than erroring,
// so a bad payload can never be mistaken for an infrastructure failure.
func Verify(gatewayOrderID, gatewayPaymentID, sig, secret string) bool {
	if gatewayOrderID == "" || gatewayPaymentID == "" || sig == "" || secret == "" {
		return false
	}

	supplied, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID))
	mac.Write([]byte("|"))
	mac.Write([]byte(gatewayPaymentID))

	return hmac.Equal(supplied, mac.Sum(nil))
}

// Sign produces the signature Verify accepts. The production gateway signs
// on its side; this exists for the fake gateway in tests and for webhook
// verification of raw bodies.
func Sign(gatewayOrderID, gatewayPaymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID))
	mac.Write([]byte("|"))
	mac.Write([]byte(gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPayload authenticates an arbitrary raw body against a shared secret,
// used for the asynchronous webhook path.
func VerifyPayload(body []byte, sig, secret string) bool {
	if len(body) == 0 || sig == "" || secret == "" {
		return false
	}

	supplied, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(supplied, mac.Sum(nil))
}

// SignPayload is the webhook counterpart of Sign.
func SignPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
