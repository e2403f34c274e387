// Package signature validates the HMAC-SHA256 signature GitHub attaches to
// every webhook delivery.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidSignature is returned when the header is missing, malformed,
// or does not match the computed digest.
var ErrInvalidSignature = errors.New("invalid signature")

const sha256Prefix = "sha256="

// Verify computes the HMAC-SHA256 digest of body under secret and compares
// it in constant time against the "sha256=<hex>" header value. Returns
// ErrInvalidSignature on any mismatch, including a missing or malformed
// header, so callers never need to special-case "header absent".
func Verify(body []byte, header string, secret []byte) error {
	if !strings.HasPrefix(header, sha256Prefix) {
		return ErrInvalidSignature
	}

	expectedHex := strings.TrimPrefix(header, sha256Prefix)
	expected, err := hex.DecodeString(expectedHex)
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	computed := mac.Sum(nil)

	if !hmac.Equal(computed, expected) {
		return ErrInvalidSignature
	}

	return nil
}
