// Package sha256 derives stable content keys.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex SHA-256 digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Key returns the digest of s, typically a normalized URL.
func Key(s string) string {
	return Sum([]byte(s))
}
