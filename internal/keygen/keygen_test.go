package keygen

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var alphanumericPattern = regexp.MustCompile(`^[0-9a-zA-Z]*$`)

func TestRandomLengthAndAlphabet(t *testing.T) {
	for _, length := range []int{0, 1, ShortKeyLength, UserIDLength, 64} {
		for i := 0; i < 100; i++ {
			token := Random(length)
			assert.Len(t, token, length)
			assert.Regexp(t, alphanumericPattern, token)
		}
	}
}

func TestRandomIsNotConstant(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		seen[Random(ShortKeyLength)] = true
	}

	// 100 draws from a 62^6 space collapsing to a handful of values would
	// mean a broken generator
	assert.Greater(t, len(seen), 90)
}
