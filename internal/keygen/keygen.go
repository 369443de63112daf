// Package keygen generates the random alphanumeric tokens used as short URL
// codes and user identifiers.
package keygen

import (
	"crypto/rand"
	"io"
	mathrand "math/rand"
)

const symbols = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Token lengths used across the application.
const (
	ShortKeyLength = 6
	UserIDLength   = 10
)

// Random returns a string of exactly `length` characters drawn from the
// 62-symbol alphabet [0-9a-zA-Z] by reducing random bytes modulo the
// alphabet size. The bytes come from crypto/rand; when the system source is
// unavailable the draw falls back to math/rand, so Random never fails.
// Uniqueness is not guaranteed; callers must check for collisions themselves.
func Random(length int) string {
	randomBytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, randomBytes); err != nil {
		for i := range randomBytes {
			randomBytes[i] = byte(mathrand.Intn(256))
		}
	}

	result := make([]byte, length)
	for i, randomByte := range randomBytes {
		result[i] = symbols[int(randomByte)%len(symbols)]
	}

	return string(result)
}
