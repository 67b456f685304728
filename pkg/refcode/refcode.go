// Package refcode generates short human-facing reference codes for
// orders and pickup verification. Codes are drawn from an uppercase
// alphanumeric alphabet; uniqueness is enforced by the storage layer's
// unique constraints, with callers retrying on collision.
package refcode

import (
	"crypto/rand"
	"fmt"
)

// Alphabet is the fixed character set codes are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// OrderCodeLength is the length of the human-facing order code.
const OrderCodeLength = 8

// New returns a random code of n characters from Alphabet.
func New(n int) string {
	if n <= 0 {
		return ""
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Sprintf("refcode: read random: %v", err))
	}
	for i, b := range buf {
		buf[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(buf)
}

// OrderCode returns a candidate order code. The caller must treat it as
// tentative until the insert carrying it succeeds.
func OrderCode() string {
	return New(OrderCodeLength)
}
