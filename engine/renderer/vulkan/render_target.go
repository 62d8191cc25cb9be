package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/prismgfx/prism/engine/core"
)

// ImageState describes how an attachment image sits outside the renderer's
// own pass: its layout, the access mask of whoever touched it last (or will
// touch it next), and the owning queue family. Queue family 0 doubles as the
// don't-care value; barriers emitted with equal source and destination
// families perform no ownership transfer.
type ImageState struct {
	Layout      vk.ImageLayout
	Access      vk.AccessFlags
	QueueFamily uint32
}

// FrameRenderAttachment is one color target for a single frame. The declared
// initial and final states are a contract: the renderer transitions the image
// from InitialState into its writable state before the pass and back into
// FinalState after, and must not assume anything beyond what is declared.
type FrameRenderAttachment struct {
	Image        vk.Image
	View         vk.ImageView
	Format       vk.Format
	InitialState ImageState
	FinalState   ImageState
}

// FrameRenderInfo is the per-frame aggregate handed from a target's acquire
// phase through the renderer's draw scope to the target's present phase. It
// is not retained beyond one frame.
type FrameRenderInfo struct {
	ColorAttachments []FrameRenderAttachment
	Extent           vk.Extent2D
	ImageIndex       uint32
}

// FrameSyncInfo is the pair of semaphores gating one frame slot's GPU work:
// ImageAvailable is signaled once the acquired image is safe to write,
// RenderFinished once the frame's commands have executed. The renderer owns
// both; targets only reference them during acquire and present.
type FrameSyncInfo struct {
	ImageAvailable vk.Semaphore
	RenderFinished vk.Semaphore
}

func NewFrameSyncInfo(rs RenderSystem) (*FrameSyncInfo, error) {
	imageAvailable, err := rs.CreateSemaphore()
	if err != nil {
		return nil, err
	}
	renderFinished, err := rs.CreateSemaphore()
	if err != nil {
		return nil, err
	}
	return &FrameSyncInfo{
		ImageAvailable: imageAvailable,
		RenderFinished: renderFinished,
	}, nil
}

func (fsi *FrameSyncInfo) Destroy(rs RenderSystem) {
	if fsi.ImageAvailable != vk.NullSemaphore {
		rs.DestroySemaphore(fsi.ImageAvailable)
		fsi.ImageAvailable = vk.NullSemaphore
	}
	if fsi.RenderFinished != vk.NullSemaphore {
		rs.DestroySemaphore(fsi.RenderFinished)
		fsi.RenderFinished = vk.NullSemaphore
	}
}

// RenderTarget is anything that can hand out an image to render into and
// later show it: a swapchain, an offscreen image chain, a capture target.
// The two operations form a mandatory pair; any GPU work the caller submits
// in between must wait on sync.ImageAvailable and signal sync.RenderFinished.
type RenderTarget interface {
	// AcquireFrame obtains the next presentable image. On success the
	// target has armed sync.ImageAvailable to be signaled once the image
	// is safe to write. Failure means no image is currently available
	// (minimized window, lost surface); the caller skips the frame.
	AcquireFrame(sync *FrameSyncInfo) (*FrameRenderInfo, error)

	// PresentFrame hands the previously acquired image back for display,
	// waiting on sync.RenderFinished. Failures are reported but callers
	// must treat them as non-fatal.
	PresentFrame(sync *FrameSyncInfo, info *FrameRenderInfo) error
}

// RenderFrame drives one acquire/render/present cycle on a target. If
// acquisition fails the frame is dropped silently: the callback never runs
// and nothing is presented. Present follows the callback unconditionally;
// its failure is logged and swallowed, since recreating an out-of-date
// target is the embedder's concern.
func RenderFrame(target RenderTarget, sync *FrameSyncInfo, f func(*FrameRenderInfo)) {
	info, err := target.AcquireFrame(sync)
	if err != nil {
		core.LogDebug("frame skipped, acquire failed: %s", err)
		return
	}

	f(info)

	if err := target.PresentFrame(sync, info); err != nil {
		core.LogDebug("present failed: %s", err)
	}
}
