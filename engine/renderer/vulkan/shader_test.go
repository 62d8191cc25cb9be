package vulkan

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpirvWords(t *testing.T) {
	code := make([]byte, 8)
	binary.LittleEndian.PutUint32(code, spirvMagic)
	binary.LittleEndian.PutUint32(code[4:], 0x00010600)

	words, err := spirvWords(code)
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 0x00010600}, words)
}

func TestSpirvWordsRejectsBadInput(t *testing.T) {
	_, err := spirvWords(nil)
	assert.Error(t, err)

	_, err = spirvWords([]byte{1, 2, 3})
	assert.Error(t, err)

	_, err = spirvWords([]byte{1, 2, 3, 4})
	assert.Error(t, err)
}
