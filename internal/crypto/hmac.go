package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HMACAuth holds the credentials for HMAC-authenticated REST requests.
type HMACAuth struct {
	Key    string // API key
	Secret string // API secret
}

// AuthHeaders returns the HTTP headers for an authenticated request. The
// signature is HMAC-SHA256(secret, payload) hex-encoded. For GET requests
// payload is the raw query string; for writes it is the JSON request body.
//
// Returned header keys:
//   - IDEX-API-Key
//   - IDEX-HMAC-Signature
func (h *HMACAuth) AuthHeaders(payload string) map[string]string {
	return map[string]string{
		"IDEX-API-Key":        h.Key,
		"IDEX-HMAC-Signature": hmacSHA256Hex([]byte(h.Secret), payload),
	}
}

// hmacSHA256Hex computes HMAC-SHA256 of message using key and returns the
// result hex-encoded.
func hmacSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// String returns a redacted representation suitable for logging.
func (h *HMACAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("HMACAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}
