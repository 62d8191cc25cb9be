package vulkan

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"

	"github.com/prismgfx/prism/engine/core"
)

// Render pass objects are derived from attachment formats and load/store
// ops alone, so the handful of distinct combinations a run produces is
// cached on the Context and reused every frame. Entries live until
// Shutdown; command buffers referencing them can stay in flight.

func renderPassKey(attachments []RenderPassAttachment) string {
	var b strings.Builder
	for _, a := range attachments {
		fmt.Fprintf(&b, "%d:%d:%d:%d|", a.Format, a.Layout, a.LoadOp, a.StoreOp)
	}
	return b.String()
}

func (ctx *Context) renderPassFor(attachments []RenderPassAttachment) (vk.RenderPass, error) {
	key := renderPassKey(attachments)
	if pass, ok := ctx.renderPasses[key]; ok {
		return pass, nil
	}

	descriptions := make([]vk.AttachmentDescription, len(attachments))
	references := make([]vk.AttachmentReference, len(attachments))
	for i, a := range attachments {
		descriptions[i] = vk.AttachmentDescription{
			Format:         a.Format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         a.LoadOp,
			StoreOp:        a.StoreOp,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  a.Layout,
			FinalLayout:    a.Layout,
		}
		references[i] = vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     a.Layout,
		}
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(references)),
		PColorAttachments:    references,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	createInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(descriptions)),
		PAttachments:    descriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pass vk.RenderPass
	if res := vk.CreateRenderPass(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &pass); res != vk.Success {
		err := fmt.Errorf("failed to create render pass: %s", ResultString(res))
		core.LogError(err.Error())
		return vk.NullRenderPass, err
	}

	if ctx.renderPasses == nil {
		ctx.renderPasses = map[string]vk.RenderPass{}
	}
	ctx.renderPasses[key] = pass
	core.LogDebug("render pass created for %d attachment(s)", len(attachments))
	return pass, nil
}

// renderPassForFormats resolves a pass for pipeline creation. Load and
// store ops do not affect render pass compatibility, so a load/store
// variant stands in for every combination with the same formats.
func (ctx *Context) renderPassForFormats(formats []vk.Format) (vk.RenderPass, error) {
	attachments := make([]RenderPassAttachment, len(formats))
	for i, format := range formats {
		attachments[i] = RenderPassAttachment{
			Format:  format,
			Layout:  vk.ImageLayoutColorAttachmentOptimal,
			LoadOp:  vk.AttachmentLoadOpLoad,
			StoreOp: vk.AttachmentStoreOpStore,
		}
	}
	return ctx.renderPassFor(attachments)
}

func (ctx *Context) framebufferFor(pass vk.RenderPass, begin *RenderPassBegin) (vk.Framebuffer, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%v|%dx%d|", pass, begin.Extent.Width, begin.Extent.Height)
	views := make([]vk.ImageView, len(begin.ColorAttachments))
	for i, a := range begin.ColorAttachments {
		views[i] = a.View
		fmt.Fprintf(&b, "%v|", a.View)
	}
	key := b.String()
	if fb, ok := ctx.framebuffers[key]; ok {
		return fb, nil
	}

	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           begin.Extent.Width,
		Height:          begin.Extent.Height,
		Layers:          1,
	}

	var fb vk.Framebuffer
	if res := vk.CreateFramebuffer(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &fb); res != vk.Success {
		err := fmt.Errorf("failed to create framebuffer: %s", ResultString(res))
		core.LogError(err.Error())
		return vk.NullFramebuffer, err
	}

	if ctx.framebuffers == nil {
		ctx.framebuffers = map[string]vk.Framebuffer{}
	}
	ctx.framebuffers[key] = fb
	return fb, nil
}

func (ctx *Context) destroyPassCaches() {
	for _, fb := range ctx.framebuffers {
		vk.DestroyFramebuffer(ctx.Device.LogicalDevice, fb, ctx.Allocator)
	}
	ctx.framebuffers = nil
	for _, pass := range ctx.renderPasses {
		vk.DestroyRenderPass(ctx.Device.LogicalDevice, pass, ctx.Allocator)
	}
	ctx.renderPasses = nil
}
