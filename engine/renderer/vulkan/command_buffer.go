package vulkan

import (
	vk "github.com/goki/vulkan"
)

// ImageStageState describes one side of an image barrier: the layout the
// image is in, the accesses that must complete or wait, the pipeline stage
// the barrier anchors to, and the owning queue family.
type ImageStageState struct {
	Layout      vk.ImageLayout
	Access      vk.AccessFlags
	Stage       vk.PipelineStageFlags
	QueueFamily uint32
}

// ImageTransition moves one image between two stage states.
type ImageTransition struct {
	Image vk.Image
	Range vk.ImageSubresourceRange
	Src   ImageStageState
	Dst   ImageStageState
}

// RenderPassAttachment configures one color attachment of a render pass.
type RenderPassAttachment struct {
	View       vk.ImageView
	Format     vk.Format
	Layout     vk.ImageLayout
	LoadOp     vk.AttachmentLoadOp
	StoreOp    vk.AttachmentStoreOp
	ClearValue vk.ClearValue
}

// RenderPassBegin carries everything needed to open a render pass. Extent
// is the full attachment size; RenderArea may restrict drawing to a
// sub-rectangle of it.
type RenderPassBegin struct {
	RenderArea       vk.Rect2D
	Extent           vk.Extent2D
	ColorAttachments []RenderPassAttachment
}

// CommandBuffer is a primary-level command buffer bound to the render
// system that allocated it.
type CommandBuffer struct {
	rs     RenderSystem
	handle vk.CommandBuffer
}

func (cb *CommandBuffer) Handle() vk.CommandBuffer {
	return cb.handle
}

// Begin opens the buffer for recording and returns a scoped recorder.
// The recorder must be ended exactly once; End is idempotent so it is
// safe to defer it alongside an explicit call on the success path.
func (cb *CommandBuffer) Begin(oneTimeSubmit bool) (*CommandRecorder, error) {
	if err := cb.rs.BeginCommandBuffer(cb.handle, oneTimeSubmit); err != nil {
		return nil, err
	}
	return &CommandRecorder{buffer: cb}, nil
}

// CommandRecorder scopes a single recording session on a command buffer.
type CommandRecorder struct {
	buffer *CommandBuffer
	ended  bool
	endErr error
}

// End closes the recording. Repeated calls return the first result.
func (r *CommandRecorder) End() error {
	if r.ended {
		return r.endErr
	}
	r.ended = true
	r.endErr = r.buffer.rs.EndCommandBuffer(r.buffer.handle)
	return r.endErr
}

// TransitionImages records a pipeline barrier covering every transition
// in one call. Transitions with equal source and destination queue
// families perform no ownership transfer.
func (r *CommandRecorder) TransitionImages(transitions []ImageTransition) {
	r.buffer.rs.CmdImageBarriers(r.buffer.handle, transitions)
}

// BeginRenderPass opens a render pass and returns a scoped recorder for
// the draw commands inside it.
func (r *CommandRecorder) BeginRenderPass(begin *RenderPassBegin) (*RenderPassRecorder, error) {
	if err := r.buffer.rs.CmdBeginRenderPass(r.buffer.handle, begin); err != nil {
		return nil, err
	}
	return &RenderPassRecorder{buffer: r.buffer}, nil
}

// RenderPassRecorder scopes the commands recorded inside one render pass.
type RenderPassRecorder struct {
	buffer *CommandBuffer
	ended  bool
}

// End closes the render pass. Safe to call more than once.
func (r *RenderPassRecorder) End() {
	if r.ended {
		return
	}
	r.ended = true
	r.buffer.rs.CmdEndRenderPass(r.buffer.handle)
}

func (r *RenderPassRecorder) BindGraphicsPipeline(pipeline vk.Pipeline) {
	r.buffer.rs.CmdBindGraphicsPipeline(r.buffer.handle, pipeline)
}

func (r *RenderPassRecorder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	r.buffer.rs.CmdDraw(r.buffer.handle, vertexCount, instanceCount, firstVertex, firstInstance)
}
