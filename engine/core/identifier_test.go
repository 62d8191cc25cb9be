package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIdentifierIsUnique(t *testing.T) {
	a := NewIdentifier()
	b := NewIdentifier()
	assert.NotEqual(t, a, b)
	assert.Len(t, a.String(), 36)
}

func TestIdentifierShort(t *testing.T) {
	id := Identifier("0123456789abcdef")
	assert.Equal(t, "01234567", id.Short())

	short := Identifier("abc")
	assert.Equal(t, "abc", short.Short())
}
