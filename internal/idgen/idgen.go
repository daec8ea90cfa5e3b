// Package idgen generates stable hash-based identifiers for records.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// DefaultLength is the number of base36 characters in a generated ID suffix.
const DefaultLength = 4

// base36Alphabet is the character set for base36 encoding (0-9, a-z).
const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// EncodeBase36 converts a byte slice to a base36 string of the given length.
func EncodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)

	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}

	// Digits come out least-significant first.
	var result strings.Builder
	for i := len(chars) - 1; i >= 0; i-- {
		result.WriteByte(chars[i])
	}

	str := result.String()
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// NewRecordID creates a hash-based ID like "sp-k3x9" from the record's
// name and creation time. The nonce handles hash collisions: callers that
// hit an existing ID retry with nonce+1.
func NewRecordID(prefix, name string, createdAt time.Time, nonce int) string {
	content := fmt.Sprintf("%s|%d|%d", name, createdAt.UnixNano(), nonce)
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%s-%s", prefix, EncodeBase36(hash[:3], DefaultLength))
}
