package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRecorderEndIsIdempotent(t *testing.T) {
	rs := &fakeRenderSystem{}
	buffers, err := rs.AllocateCommandBuffers(1)
	require.NoError(t, err)

	recorder, err := buffers[0].Begin(true)
	require.NoError(t, err)

	require.NoError(t, recorder.End())
	require.NoError(t, recorder.End())
	require.NoError(t, recorder.End())

	assert.Equal(t, 1, rs.beginCount)
	assert.Equal(t, 1, rs.endCount)
}

func TestCommandRecorderBeginFailure(t *testing.T) {
	rs := &fakeRenderSystem{failBegin: true}
	buffers, err := rs.AllocateCommandBuffers(1)
	require.NoError(t, err)

	recorder, err := buffers[0].Begin(true)
	assert.Error(t, err)
	assert.Nil(t, recorder)
}

func TestRenderPassRecorderEndIsIdempotent(t *testing.T) {
	rs := &fakeRenderSystem{}
	buffers, err := rs.AllocateCommandBuffers(1)
	require.NoError(t, err)

	recorder, err := buffers[0].Begin(false)
	require.NoError(t, err)

	pass, err := recorder.BeginRenderPass(&RenderPassBegin{})
	require.NoError(t, err)
	pass.BindGraphicsPipeline(vk.NullPipeline)
	pass.Draw(3, 1, 0, 0)
	pass.End()
	pass.End()

	assert.Equal(t, 1, len(rs.passBegins))
	assert.Equal(t, 1, rs.passEnds)
	assert.Equal(t, 1, rs.draws)
}

func TestRenderPassRecorderBeginFailure(t *testing.T) {
	rs := &fakeRenderSystem{failBeginPass: true}
	buffers, err := rs.AllocateCommandBuffers(1)
	require.NoError(t, err)

	recorder, err := buffers[0].Begin(false)
	require.NoError(t, err)

	pass, err := recorder.BeginRenderPass(&RenderPassBegin{})
	assert.Error(t, err)
	assert.Nil(t, pass)
	assert.Zero(t, rs.passEnds)
}
