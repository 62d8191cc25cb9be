package vulkan

import (
	"fmt"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submitRecord struct {
	waitStage vk.PipelineStageFlags
}

// fakeRenderSystem records every call the renderer makes so tests can
// assert on the command stream without a device.
type fakeRenderSystem struct {
	semaphoresCreated int
	fencesCreated     int
	fenceWaits        int
	fenceWaitTimeouts []uint64
	fenceResets       int

	beginCount int
	endCount   int

	barrierBatches [][]ImageTransition
	passBegins     []*RenderPassBegin
	passEnds       int
	draws          int

	submits       []submitRecord
	failSubmit    bool
	failBegin     bool
	failBeginPass bool
}

func (f *fakeRenderSystem) CreateSemaphore() (vk.Semaphore, error) {
	f.semaphoresCreated++
	return vk.NullSemaphore, nil
}

func (f *fakeRenderSystem) DestroySemaphore(vk.Semaphore) {}

func (f *fakeRenderSystem) CreateFence(signaled bool) (vk.Fence, error) {
	f.fencesCreated++
	return vk.NullFence, nil
}

func (f *fakeRenderSystem) DestroyFence(vk.Fence) {}

func (f *fakeRenderSystem) WaitForFence(_ vk.Fence, timeoutNs uint64) error {
	f.fenceWaits++
	f.fenceWaitTimeouts = append(f.fenceWaitTimeouts, timeoutNs)
	return nil
}

func (f *fakeRenderSystem) ResetFence(vk.Fence) error {
	f.fenceResets++
	return nil
}

func (f *fakeRenderSystem) AllocateCommandBuffers(count int) ([]*CommandBuffer, error) {
	buffers := make([]*CommandBuffer, count)
	for i := range buffers {
		buffers[i] = &CommandBuffer{rs: f}
	}
	return buffers, nil
}

func (f *fakeRenderSystem) BeginCommandBuffer(vk.CommandBuffer, bool) error {
	if f.failBegin {
		return fmt.Errorf("begin failed")
	}
	f.beginCount++
	return nil
}

func (f *fakeRenderSystem) EndCommandBuffer(vk.CommandBuffer) error {
	f.endCount++
	return nil
}

func (f *fakeRenderSystem) CmdImageBarriers(cb vk.CommandBuffer, transitions []ImageTransition) {
	f.barrierBatches = append(f.barrierBatches, transitions)
}

func (f *fakeRenderSystem) CmdBeginRenderPass(cb vk.CommandBuffer, begin *RenderPassBegin) error {
	if f.failBeginPass {
		return fmt.Errorf("render pass creation failed")
	}
	f.passBegins = append(f.passBegins, begin)
	return nil
}

func (f *fakeRenderSystem) CmdEndRenderPass(vk.CommandBuffer) {
	f.passEnds++
}

func (f *fakeRenderSystem) CmdBindGraphicsPipeline(vk.CommandBuffer, vk.Pipeline) {}

func (f *fakeRenderSystem) CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	f.draws++
}

func (f *fakeRenderSystem) SubmitFrame(cb vk.CommandBuffer, waitSemaphore vk.Semaphore, waitStage vk.PipelineStageFlags, signalSemaphore vk.Semaphore, fence vk.Fence) error {
	if f.failSubmit {
		return fmt.Errorf("submit failed")
	}
	f.submits = append(f.submits, submitRecord{waitStage: waitStage})
	return nil
}

func (f *fakeRenderSystem) WaitIdle() error { return nil }

// fakeTarget hands out a fixed frame description and records presents.
type fakeTarget struct {
	attachments []FrameRenderAttachment
	extent      vk.Extent2D

	failAcquire bool
	failPresent bool

	acquires int
	presents int
}

func (t *fakeTarget) AcquireFrame(sync *FrameSyncInfo) (*FrameRenderInfo, error) {
	t.acquires++
	if t.failAcquire {
		return nil, fmt.Errorf("no image available")
	}
	return &FrameRenderInfo{
		ColorAttachments: t.attachments,
		Extent:           t.extent,
	}, nil
}

func (t *fakeTarget) PresentFrame(sync *FrameSyncInfo, info *FrameRenderInfo) error {
	t.presents++
	if t.failPresent {
		return fmt.Errorf("present failed")
	}
	return nil
}

func newTestTarget() *fakeTarget {
	return &fakeTarget{
		attachments: []FrameRenderAttachment{
			{
				InitialState: ImageState{Layout: vk.ImageLayoutUndefined},
				FinalState:   ImageState{Layout: vk.ImageLayoutPresentSrc},
			},
		},
		extent: vk.Extent2D{Width: 800, Height: 600},
	}
}

func TestDrawFrameCursorRoundTrip(t *testing.T) {
	rs := &fakeRenderSystem{}
	r, err := NewPrimaryRenderer(rs)
	require.NoError(t, err)
	target := newTestTarget()

	var cursors []int
	for i := 0; i < 5; i++ {
		cursors = append(cursors, r.FrameIndex())
		require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) {}))
	}

	assert.Equal(t, []int{0, 1, 0, 1, 0}, cursors)
	assert.Equal(t, 5, target.acquires)
	assert.Equal(t, 5, target.presents)
	assert.Len(t, rs.submits, 5)
}

func TestDrawFrameThrottlesOnFence(t *testing.T) {
	rs := &fakeRenderSystem{}
	r, err := NewPrimaryRenderer(rs)
	require.NoError(t, err)
	target := newTestTarget()

	// The first visit to each slot finds its fence still CPU-signaled
	// from creation, so no device wait happens until a slot is reused.
	for i := 0; i < 2; i++ {
		require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) {}))
	}
	assert.Equal(t, 0, rs.fenceWaits)
	assert.Equal(t, 2, rs.fenceResets)

	require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) {}))
	assert.Equal(t, 1, rs.fenceWaits)
	assert.Equal(t, 3, rs.fenceResets)
	// Reusing a slot blocks until its work retires, with no deadline.
	require.Len(t, rs.fenceWaitTimeouts, 1)
	assert.Equal(t, uint64(vk.MaxUint64), rs.fenceWaitTimeouts[0])
}

func TestDrawFrameSkipsOnFailedAcquire(t *testing.T) {
	rs := &fakeRenderSystem{}
	r, err := NewPrimaryRenderer(rs)
	require.NoError(t, err)
	target := newTestTarget()
	target.failAcquire = true

	called := false
	require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) { called = true }))

	assert.False(t, called)
	assert.Zero(t, target.presents)
	assert.Empty(t, rs.submits)
	assert.Zero(t, rs.beginCount)
	// The cursor still advances and the slot fence is flagged signaled
	// so the next cycle on it does not wait forever.
	assert.Equal(t, 1, r.FrameIndex())
	assert.True(t, r.fences[0].IsSignaled)
}

func TestDrawFramePresentFailureIsNonFatal(t *testing.T) {
	rs := &fakeRenderSystem{}
	r, err := NewPrimaryRenderer(rs)
	require.NoError(t, err)
	target := newTestTarget()
	target.failPresent = true

	require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) {}))

	assert.Len(t, rs.submits, 1)
	assert.Equal(t, 1, target.presents)
	assert.Equal(t, 1, r.FrameIndex())
}

func TestDrawFrameRecordingClosesOnSubmitFailure(t *testing.T) {
	rs := &fakeRenderSystem{}
	r, err := NewPrimaryRenderer(rs)
	require.NoError(t, err)
	target := newTestTarget()
	rs.failSubmit = true

	require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) {}))

	assert.Equal(t, 1, rs.beginCount)
	assert.Equal(t, 1, rs.endCount)
	// Present still runs after the draw callback even when the submit
	// failed; only the fence bookkeeping records the dropped work.
	assert.Equal(t, 1, target.presents)
	assert.True(t, r.fences[0].IsSignaled)
}

func TestDrawFrameSkipsOnFailedRenderPassBegin(t *testing.T) {
	rs := &fakeRenderSystem{}
	r, err := NewPrimaryRenderer(rs)
	require.NoError(t, err)
	target := newTestTarget()
	rs.failBeginPass = true

	called := false
	require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) { called = true }))

	assert.False(t, called)
	assert.Empty(t, rs.submits)
	// Recording still closes so the buffer is reusable next cycle.
	assert.Equal(t, 1, rs.endCount)
	assert.Equal(t, 1, r.FrameIndex())
	assert.True(t, r.fences[0].IsSignaled)
}

func TestDrawFrameEndsRecordingExactlyOnce(t *testing.T) {
	rs := &fakeRenderSystem{}
	r, err := NewPrimaryRenderer(rs)
	require.NoError(t, err)
	target := newTestTarget()

	require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) {}))

	assert.Equal(t, 1, rs.beginCount)
	assert.Equal(t, 1, rs.endCount)
	assert.Equal(t, 1, rs.passEnds)
}

func TestDrawFrameBarriers(t *testing.T) {
	rs := &fakeRenderSystem{}
	r, err := NewPrimaryRenderer(rs)
	require.NoError(t, err)
	target := newTestTarget()

	require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) {}))

	require.Len(t, rs.barrierBatches, 2)
	pre := rs.barrierBatches[0]
	require.Len(t, pre, 1)
	assert.Equal(t, vk.ImageLayoutUndefined, pre[0].Src.Layout)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, pre[0].Dst.Layout)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit), pre[0].Dst.Stage)

	post := rs.barrierBatches[1]
	require.Len(t, post, 1)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, post[0].Src.Layout)
	assert.Equal(t, vk.ImageLayoutPresentSrc, post[0].Dst.Layout)
}

func TestDrawFrameElidesBarriersForWritableAttachments(t *testing.T) {
	rs := &fakeRenderSystem{}
	r, err := NewPrimaryRenderer(rs)
	require.NoError(t, err)

	target := newTestTarget()
	target.attachments = []FrameRenderAttachment{
		{
			InitialState: writableAttachmentState,
			FinalState:   writableAttachmentState,
		},
	}

	require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) {}))

	assert.Empty(t, rs.barrierBatches)
	assert.Len(t, rs.submits, 1)
}

func TestDrawFrameClearVersusLoad(t *testing.T) {
	rs := &fakeRenderSystem{}
	r, err := NewPrimaryRenderer(rs)
	require.NoError(t, err)

	target := newTestTarget()
	target.attachments = append(target.attachments, FrameRenderAttachment{
		InitialState: writableAttachmentState,
		FinalState:   writableAttachmentState,
	})

	var clear vk.ClearValue
	clear.SetColor([]float32{0.1, 0.2, 0.3, 1.0})
	r.SetClearValue(0, &clear)

	require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) {}))

	require.Len(t, rs.passBegins, 1)
	attachments := rs.passBegins[0].ColorAttachments
	require.Len(t, attachments, 2)
	assert.Equal(t, vk.AttachmentLoadOpClear, attachments[0].LoadOp)
	assert.Equal(t, clear, attachments[0].ClearValue)
	assert.Equal(t, vk.AttachmentLoadOpLoad, attachments[1].LoadOp)
	assert.Equal(t, vk.AttachmentStoreOpStore, attachments[0].StoreOp)
}

func TestDrawFrameRenderArea(t *testing.T) {
	rs := &fakeRenderSystem{}
	r, err := NewPrimaryRenderer(rs)
	require.NoError(t, err)
	target := newTestTarget()

	require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) {}))
	require.Len(t, rs.passBegins, 1)
	assert.Equal(t, vk.Rect2D{Extent: target.extent}, rs.passBegins[0].RenderArea)

	area := vk.Rect2D{
		Offset: vk.Offset2D{X: 10, Y: 20},
		Extent: vk.Extent2D{Width: 100, Height: 50},
	}
	r.SetRenderArea(&area)
	require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) {}))
	require.Len(t, rs.passBegins, 2)
	assert.Equal(t, area, rs.passBegins[1].RenderArea)

	r.SetRenderArea(nil)
	require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) {}))
	require.Len(t, rs.passBegins, 3)
	assert.Equal(t, vk.Rect2D{Extent: target.extent}, rs.passBegins[2].RenderArea)
}

func TestDrawFrameSubmitWaitStage(t *testing.T) {
	rs := &fakeRenderSystem{}
	r, err := NewPrimaryRenderer(rs)
	require.NoError(t, err)
	target := newTestTarget()

	require.NoError(t, r.DrawFrame(target, func(*RenderPassRecorder) {}))

	require.Len(t, rs.submits, 1)
	assert.Equal(t, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), rs.submits[0].waitStage)
}

func TestDrawFrameDrawCallbackRecordsIntoPass(t *testing.T) {
	rs := &fakeRenderSystem{}
	r, err := NewPrimaryRenderer(rs)
	require.NoError(t, err)
	target := newTestTarget()

	require.NoError(t, r.DrawFrame(target, func(pass *RenderPassRecorder) {
		pass.Draw(3, 1, 0, 0)
	}))

	assert.Equal(t, 1, rs.draws)
	assert.Equal(t, 1, rs.passEnds)
}
