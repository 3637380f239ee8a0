package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashToken(t *testing.T) {
	h1 := HashToken("u1-abcdefghijklmnopqrst")
	h2 := HashToken("u1-abcdefghijklmnopqrst")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, HashToken("u1-abcdefghijklmnopqrsu"))
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "abc", ShortHash("abc"))
	assert.Equal(t, "0123456789ab", ShortHash("0123456789abcdef"))
}
