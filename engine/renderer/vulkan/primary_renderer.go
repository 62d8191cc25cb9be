package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/prismgfx/prism/engine/core"
)

// MaxFramesInFlight bounds how many frames the CPU may record ahead of
// the GPU.
const MaxFramesInFlight = 2

// writableAttachmentState is the state every color attachment is brought
// into before drawing. Attachments already declared in this state need no
// pre-pass barrier.
var writableAttachmentState = ImageState{
	Layout:      vk.ImageLayoutColorAttachmentOptimal,
	Access:      vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	QueueFamily: 0,
}

// PrimaryRenderer owns the per-frame pacing state: one sync slot, fence
// and command buffer per frame in flight, advanced round-robin each frame
// whether or not the frame was actually rendered.
type PrimaryRenderer struct {
	rs RenderSystem

	syncInfos      []FrameSyncInfo
	fences         []*Fence
	commandBuffers []*CommandBuffer

	clearValues []*vk.ClearValue
	renderArea  *vk.Rect2D

	frameIndex int
}

func NewPrimaryRenderer(rs RenderSystem) (*PrimaryRenderer, error) {
	r := &PrimaryRenderer{
		rs:        rs,
		syncInfos: make([]FrameSyncInfo, MaxFramesInFlight),
		fences:    make([]*Fence, MaxFramesInFlight),
	}

	buffers, err := rs.AllocateCommandBuffers(MaxFramesInFlight)
	if err != nil {
		return nil, err
	}
	r.commandBuffers = buffers

	for i := 0; i < MaxFramesInFlight; i++ {
		sync, err := NewFrameSyncInfo(rs)
		if err != nil {
			r.Destroy()
			return nil, err
		}
		r.syncInfos[i] = *sync

		fence, err := NewFence(rs, true)
		if err != nil {
			r.Destroy()
			return nil, err
		}
		r.fences[i] = fence
	}

	return r, nil
}

// SetClearValue registers the clear value used for the color attachment at
// the given index. Attachments without a registered value load their
// previous contents instead of clearing.
func (r *PrimaryRenderer) SetClearValue(index int, value *vk.ClearValue) {
	for len(r.clearValues) <= index {
		r.clearValues = append(r.clearValues, nil)
	}
	r.clearValues[index] = value
}

// SetRenderArea overrides the render area of subsequent frames. A nil
// area restores the default of covering the full frame extent.
func (r *PrimaryRenderer) SetRenderArea(area *vk.Rect2D) {
	r.renderArea = area
}

// FrameIndex reports the frame slot the next DrawFrame call will use.
func (r *PrimaryRenderer) FrameIndex() int {
	return r.frameIndex
}

// DrawFrame renders one frame to the target: it throttles on the slot's
// fence, acquires an image, records barriers and the rendering pass around
// the draw callback, submits, and presents. A frame whose image cannot be
// acquired, or whose recording or submission fails, is skipped without
// error; the slot cursor advances in every case.
func (r *PrimaryRenderer) DrawFrame(target RenderTarget, draw func(*RenderPassRecorder)) error {
	slot := r.frameIndex
	fence := r.fences[slot]
	sync := &r.syncInfos[slot]

	// Wait without a deadline; a slot is reused only once its previous
	// frame's work has fully retired.
	if err := fence.Wait(r.rs, vk.MaxUint64); err != nil {
		return err
	}
	if err := fence.Reset(r.rs); err != nil {
		return err
	}

	submitted := false
	RenderFrame(target, sync, func(info *FrameRenderInfo) {
		if err := r.recordFrame(slot, info, draw); err != nil {
			core.LogWarn("frame %d dropped: %s", slot, err)
			return
		}
		if err := r.rs.SubmitFrame(r.commandBuffers[slot].Handle(), sync.ImageAvailable,
			vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit), sync.RenderFinished, fence.Handle); err != nil {
			core.LogWarn("frame %d dropped: %s", slot, err)
			return
		}
		submitted = true
	})

	if !submitted {
		// Nothing will ever signal the fence for this cycle, so the
		// CPU-side flag has to stand in for the missing GPU signal.
		fence.IsSignaled = true
	}

	r.frameIndex = (r.frameIndex + 1) % MaxFramesInFlight
	return nil
}

func (r *PrimaryRenderer) recordFrame(slot int, info *FrameRenderInfo, draw func(*RenderPassRecorder)) error {
	recorder, err := r.commandBuffers[slot].Begin(true)
	if err != nil {
		return err
	}
	defer recorder.End()

	if pre := r.preRenderTransitions(info); len(pre) > 0 {
		recorder.TransitionImages(pre)
	}

	pass, err := recorder.BeginRenderPass(r.renderPassBegin(info))
	if err != nil {
		return err
	}
	draw(pass)
	pass.End()

	if post := r.postRenderTransitions(info); len(post) > 0 {
		recorder.TransitionImages(post)
	}

	return recorder.End()
}

func (r *PrimaryRenderer) preRenderTransitions(info *FrameRenderInfo) []ImageTransition {
	var transitions []ImageTransition
	for _, attachment := range info.ColorAttachments {
		if attachment.InitialState == writableAttachmentState {
			continue
		}
		transitions = append(transitions, ImageTransition{
			Image: attachment.Image,
			Range: colorSubresourceRange(),
			Src: ImageStageState{
				Layout:      attachment.InitialState.Layout,
				Access:      attachment.InitialState.Access,
				Stage:       vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
				QueueFamily: attachment.InitialState.QueueFamily,
			},
			Dst: ImageStageState{
				Layout:      writableAttachmentState.Layout,
				Access:      writableAttachmentState.Access,
				Stage:       vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
				QueueFamily: writableAttachmentState.QueueFamily,
			},
		})
	}
	return transitions
}

func (r *PrimaryRenderer) postRenderTransitions(info *FrameRenderInfo) []ImageTransition {
	var transitions []ImageTransition
	for _, attachment := range info.ColorAttachments {
		if attachment.FinalState == writableAttachmentState {
			continue
		}
		transitions = append(transitions, ImageTransition{
			Image: attachment.Image,
			Range: colorSubresourceRange(),
			Src: ImageStageState{
				Layout:      writableAttachmentState.Layout,
				Access:      writableAttachmentState.Access,
				Stage:       vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
				QueueFamily: writableAttachmentState.QueueFamily,
			},
			Dst: ImageStageState{
				Layout:      attachment.FinalState.Layout,
				Access:      attachment.FinalState.Access,
				Stage:       vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
				QueueFamily: attachment.FinalState.QueueFamily,
			},
		})
	}
	return transitions
}

func (r *PrimaryRenderer) renderPassBegin(info *FrameRenderInfo) *RenderPassBegin {
	attachments := make([]RenderPassAttachment, len(info.ColorAttachments))
	for i, attachment := range info.ColorAttachments {
		ra := RenderPassAttachment{
			View:    attachment.View,
			Format:  attachment.Format,
			Layout:  vk.ImageLayoutColorAttachmentOptimal,
			LoadOp:  vk.AttachmentLoadOpLoad,
			StoreOp: vk.AttachmentStoreOpStore,
		}
		if i < len(r.clearValues) && r.clearValues[i] != nil {
			ra.LoadOp = vk.AttachmentLoadOpClear
			ra.ClearValue = *r.clearValues[i]
		}
		attachments[i] = ra
	}

	area := vk.Rect2D{Extent: info.Extent}
	if r.renderArea != nil {
		area = *r.renderArea
	}

	return &RenderPassBegin{
		RenderArea:       area,
		Extent:           info.Extent,
		ColorAttachments: attachments,
	}
}

func (r *PrimaryRenderer) Destroy() {
	for i := range r.syncInfos {
		r.syncInfos[i].Destroy(r.rs)
	}
	for _, fence := range r.fences {
		if fence != nil {
			fence.Destroy(r.rs)
		}
	}
	r.fences = nil
	r.commandBuffers = nil
}

func colorSubresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
		LayerCount: 1,
	}
}
