package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/prismgfx/prism/engine/core"
	m "github.com/prismgfx/prism/engine/math"
)

// SwapchainRenderTarget presents rendered frames to the window surface.
type SwapchainRenderTarget struct {
	ctx *Context
	id  core.Identifier

	Handle      vk.Swapchain
	Images      []vk.Image
	Views       []vk.ImageView
	Format      vk.SurfaceFormat
	PresentMode vk.PresentMode
	Extent      vk.Extent2D
}

func NewSwapchainRenderTarget(ctx *Context, framebufferWidth, framebufferHeight uint32) (*SwapchainRenderTarget, error) {
	support, err := ctx.Device.QuerySwapchainSupport(ctx.Surface)
	if err != nil {
		return nil, err
	}

	sc := &SwapchainRenderTarget{
		ctx:         ctx,
		id:          core.NewIdentifier(),
		Format:      chooseSurfaceFormat(support.Formats),
		PresentMode: choosePresentMode(support.PresentModes),
		Extent:      chooseSwapExtent(support.Capabilities, framebufferWidth, framebufferHeight),
	}
	imageCount := chooseImageCount(support.Capabilities)

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          ctx.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      sc.Format.Format,
		ImageColorSpace:  sc.Format.ColorSpace,
		ImageExtent:      sc.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      sc.PresentMode,
		Clipped:          vk.True,
		ImageSharingMode: vk.SharingModeExclusive,
	}

	graphicsFamily := ctx.Device.GraphicsQueueFamily
	presentFamily := ctx.Device.PresentQueueFamily
	if graphicsFamily != presentFamily {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{graphicsFamily, presentFamily}
	}

	if res := vk.CreateSwapchain(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &sc.Handle); res != vk.Success {
		err := fmt.Errorf("failed to create swapchain: %s", ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	var actualCount uint32
	vk.GetSwapchainImages(ctx.Device.LogicalDevice, sc.Handle, &actualCount, nil)
	sc.Images = make([]vk.Image, actualCount)
	vk.GetSwapchainImages(ctx.Device.LogicalDevice, sc.Handle, &actualCount, sc.Images)

	sc.Views = make([]vk.ImageView, actualCount)
	for i, image := range sc.Images {
		viewCreateInfo := vk.ImageViewCreateInfo{
			SType:            vk.StructureTypeImageViewCreateInfo,
			Image:            image,
			ViewType:         vk.ImageViewType2d,
			Format:           sc.Format.Format,
			SubresourceRange: colorSubresourceRange(),
		}
		if res := vk.CreateImageView(ctx.Device.LogicalDevice, &viewCreateInfo, ctx.Allocator, &sc.Views[i]); res != vk.Success {
			err := fmt.Errorf("failed to create swapchain image view %d: %s", i, ResultString(res))
			core.LogError(err.Error())
			sc.Destroy()
			return nil, err
		}
	}

	core.LogInfo("swapchain %s created with %d images at %dx%d", sc.id.Short(), actualCount, sc.Extent.Width, sc.Extent.Height)
	return sc, nil
}

// AcquireFrame implements RenderTarget. Transient acquire failures such as
// an out of date surface come back as errors so the caller can skip the
// frame and try again on a later one.
func (sc *SwapchainRenderTarget) AcquireFrame(sync *FrameSyncInfo) (*FrameRenderInfo, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(sc.ctx.Device.LogicalDevice, sc.Handle, vk.MaxUint64,
		sync.ImageAvailable, vk.NullFence, &imageIndex)
	if result != vk.Success && result != vk.Suboptimal {
		return nil, fmt.Errorf("failed to acquire swapchain image: %s", ResultString(result))
	}

	return &FrameRenderInfo{
		ColorAttachments: []FrameRenderAttachment{
			{
				Image:  sc.Images[imageIndex],
				View:   sc.Views[imageIndex],
				Format: sc.Format.Format,
				InitialState: ImageState{
					Layout: vk.ImageLayoutUndefined,
				},
				FinalState: ImageState{
					Layout: vk.ImageLayoutPresentSrc,
				},
			},
		},
		Extent:     sc.Extent,
		ImageIndex: imageIndex,
	}, nil
}

// PresentFrame implements RenderTarget. Presentation failures are reported
// but leave the swapchain usable for subsequent frames.
func (sc *SwapchainRenderTarget) PresentFrame(sync *FrameSyncInfo, info *FrameRenderInfo) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sync.RenderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{info.ImageIndex},
	}

	result := vk.QueuePresent(sc.ctx.Device.PresentQueue, &presentInfo)
	if result != vk.Success && result != vk.Suboptimal {
		return fmt.Errorf("failed to present swapchain image: %s", ResultString(result))
	}
	return nil
}

// Destroy waits for the device to go idle, then tears down the image views
// before the swapchain itself. The images belong to the swapchain and are
// released with it.
func (sc *SwapchainRenderTarget) Destroy() {
	sc.ctx.WaitIdle()

	for _, view := range sc.Views {
		if view != vk.NullImageView {
			vk.DestroyImageView(sc.ctx.Device.LogicalDevice, view, sc.ctx.Allocator)
		}
	}
	sc.Views = nil
	sc.Images = nil

	if sc.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(sc.ctx.Device.LogicalDevice, sc.Handle, sc.ctx.Allocator)
		sc.Handle = vk.NullSwapchain
	}
}

func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Srgb && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

func choosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	return vk.PresentModeFifo
}

func chooseSwapExtent(caps vk.SurfaceCapabilities, framebufferWidth, framebufferHeight uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != vk.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  m.Clamp(framebufferWidth, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: m.Clamp(framebufferHeight, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func chooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}
