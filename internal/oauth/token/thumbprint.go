package token

import (
	"crypto/sha256"
	"encoding/base64"
)

// Thumbprint returns base64url(SHA-256(raw)) without padding, the x5t#S256
// value of RFC 8705 §3.1 for a DER encoded certificate.
func Thumbprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// leftHalfHash computes at_hash / c_hash (OIDC Core §3.3.2.11) for SHA-256 based algorithms.
func leftHalfHash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2])
}
