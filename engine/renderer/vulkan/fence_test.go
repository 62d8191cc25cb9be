package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFenceWaitShortCircuitsWhenSignaled(t *testing.T) {
	rs := &fakeRenderSystem{}
	fence, err := NewFence(rs, true)
	require.NoError(t, err)

	require.NoError(t, fence.Wait(rs, vk.MaxUint64))
	assert.Zero(t, rs.fenceWaits)
}

func TestFenceWaitMarksSignaled(t *testing.T) {
	rs := &fakeRenderSystem{}
	fence, err := NewFence(rs, false)
	require.NoError(t, err)

	require.NoError(t, fence.Wait(rs, vk.MaxUint64))
	assert.Equal(t, 1, rs.fenceWaits)
	assert.True(t, fence.IsSignaled)

	// A second wait sees the cached flag.
	require.NoError(t, fence.Wait(rs, vk.MaxUint64))
	assert.Equal(t, 1, rs.fenceWaits)
}

func TestFenceResetOnlyActsOnSignaledFences(t *testing.T) {
	rs := &fakeRenderSystem{}
	fence, err := NewFence(rs, false)
	require.NoError(t, err)

	require.NoError(t, fence.Reset(rs))
	assert.Zero(t, rs.fenceResets)

	fence.IsSignaled = true
	require.NoError(t, fence.Reset(rs))
	assert.Equal(t, 1, rs.fenceResets)
	assert.False(t, fence.IsSignaled)
}
