package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/prismgfx/prism/engine/core"
)

// RenderSystem is the slice of device functionality the frame loop drives:
// sync primitive management, command buffer allocation and recording, and
// queue submission. Context is the live implementation; tests substitute a
// recording fake so the per-frame algorithm can be exercised without a GPU.
type RenderSystem interface {
	CreateSemaphore() (vk.Semaphore, error)
	DestroySemaphore(semaphore vk.Semaphore)
	CreateFence(signaled bool) (vk.Fence, error)
	DestroyFence(fence vk.Fence)
	WaitForFence(fence vk.Fence, timeoutNs uint64) error
	ResetFence(fence vk.Fence) error

	AllocateCommandBuffers(count int) ([]*CommandBuffer, error)
	BeginCommandBuffer(cb vk.CommandBuffer, oneTimeSubmit bool) error
	EndCommandBuffer(cb vk.CommandBuffer) error
	CmdImageBarriers(cb vk.CommandBuffer, transitions []ImageTransition)
	CmdBeginRenderPass(cb vk.CommandBuffer, begin *RenderPassBegin) error
	CmdEndRenderPass(cb vk.CommandBuffer)
	CmdBindGraphicsPipeline(cb vk.CommandBuffer, pipeline vk.Pipeline)
	CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)

	// SubmitFrame submits one frame's commands to the graphics queue,
	// waiting on waitSemaphore at waitStage and signaling both
	// signalSemaphore and fence on completion.
	SubmitFrame(cb vk.CommandBuffer, waitSemaphore vk.Semaphore, waitStage vk.PipelineStageFlags, signalSemaphore vk.Semaphore, fence vk.Fence) error

	WaitIdle() error
}

var _ RenderSystem = (*Context)(nil)

func (ctx *Context) CreateSemaphore() (vk.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var semaphore vk.Semaphore
	if res := vk.CreateSemaphore(ctx.Device.LogicalDevice, &semaphoreCreateInfo, ctx.Allocator, &semaphore); res != vk.Success {
		err := fmt.Errorf("failed to create semaphore: %s", ResultString(res))
		core.LogError(err.Error())
		return vk.NullSemaphore, err
	}
	return semaphore, nil
}

func (ctx *Context) DestroySemaphore(semaphore vk.Semaphore) {
	vk.DestroySemaphore(ctx.Device.LogicalDevice, semaphore, ctx.Allocator)
}

func (ctx *Context) CreateFence(signaled bool) (vk.Fence, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if res := vk.CreateFence(ctx.Device.LogicalDevice, &fenceCreateInfo, ctx.Allocator, &fence); res != vk.Success {
		err := fmt.Errorf("failed to create fence: %s", ResultString(res))
		core.LogError(err.Error())
		return vk.NullFence, err
	}
	return fence, nil
}

func (ctx *Context) DestroyFence(fence vk.Fence) {
	vk.DestroyFence(ctx.Device.LogicalDevice, fence, ctx.Allocator)
}

func (ctx *Context) WaitForFence(fence vk.Fence, timeoutNs uint64) error {
	result := vk.WaitForFences(ctx.Device.LogicalDevice, 1, []vk.Fence{fence}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogWarn("fence wait timed out")
	default:
		core.LogError("fence wait failed: %s", ResultString(result))
	}
	return fmt.Errorf("fence wait failed: %s", ResultString(result))
}

func (ctx *Context) ResetFence(fence vk.Fence) error {
	if res := vk.ResetFences(ctx.Device.LogicalDevice, 1, []vk.Fence{fence}); res != vk.Success {
		err := fmt.Errorf("failed to reset fence: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (ctx *Context) AllocateCommandBuffers(count int) ([]*CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        ctx.Device.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}

	handles := make([]vk.CommandBuffer, count)
	if res := vk.AllocateCommandBuffers(ctx.Device.LogicalDevice, &allocateInfo, handles); res != vk.Success {
		err := fmt.Errorf("failed to allocate command buffers: %s", ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	buffers := make([]*CommandBuffer, count)
	for i, handle := range handles {
		buffers[i] = &CommandBuffer{rs: ctx, handle: handle}
	}
	return buffers, nil
}

func (ctx *Context) BeginCommandBuffer(cb vk.CommandBuffer, oneTimeSubmit bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		beginInfo.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}

	if res := vk.BeginCommandBuffer(cb, &beginInfo); res != vk.Success {
		err := fmt.Errorf("failed to begin command buffer: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (ctx *Context) EndCommandBuffer(cb vk.CommandBuffer) error {
	if res := vk.EndCommandBuffer(cb); res != vk.Success {
		err := fmt.Errorf("failed to end command buffer: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (ctx *Context) CmdImageBarriers(cb vk.CommandBuffer, transitions []ImageTransition) {
	if len(transitions) == 0 {
		return
	}

	var srcStages, dstStages vk.PipelineStageFlags
	barriers := make([]vk.ImageMemoryBarrier, len(transitions))
	for i, t := range transitions {
		srcStages |= t.Src.Stage
		dstStages |= t.Dst.Stage
		barriers[i] = vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       t.Src.Access,
			DstAccessMask:       t.Dst.Access,
			OldLayout:           t.Src.Layout,
			NewLayout:           t.Dst.Layout,
			SrcQueueFamilyIndex: t.Src.QueueFamily,
			DstQueueFamilyIndex: t.Dst.QueueFamily,
			Image:               t.Image,
			SubresourceRange:    t.Range,
		}
	}

	vk.CmdPipelineBarrier(cb, srcStages, dstStages, 0, 0, nil, 0, nil, uint32(len(barriers)), barriers)
}

func (ctx *Context) CmdBeginRenderPass(cb vk.CommandBuffer, begin *RenderPassBegin) error {
	pass, err := ctx.renderPassFor(begin.ColorAttachments)
	if err != nil {
		return err
	}
	framebuffer, err := ctx.framebufferFor(pass, begin)
	if err != nil {
		return err
	}

	clearValues := make([]vk.ClearValue, len(begin.ColorAttachments))
	for i, a := range begin.ColorAttachments {
		clearValues[i] = a.ClearValue
	}

	beginInfo := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      pass,
		Framebuffer:     framebuffer,
		RenderArea:      begin.RenderArea,
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}

	vk.CmdBeginRenderPass(cb, &beginInfo, vk.SubpassContentsInline)
	return nil
}

func (ctx *Context) CmdEndRenderPass(cb vk.CommandBuffer) {
	vk.CmdEndRenderPass(cb)
}

func (ctx *Context) CmdBindGraphicsPipeline(cb vk.CommandBuffer, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(cb, vk.PipelineBindPointGraphics, pipeline)
}

func (ctx *Context) CmdDraw(cb vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(cb, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (ctx *Context) SubmitFrame(cb vk.CommandBuffer, waitSemaphore vk.Semaphore, waitStage vk.PipelineStageFlags, signalSemaphore vk.Semaphore, fence vk.Fence) error {
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb},
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{waitSemaphore},
		PWaitDstStageMask:    []vk.PipelineStageFlags{waitStage},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{signalSemaphore},
	}

	if res := vk.QueueSubmit(ctx.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence); res != vk.Success {
		err := fmt.Errorf("vkQueueSubmit failed: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (ctx *Context) WaitIdle() error {
	if res := vk.DeviceWaitIdle(ctx.Device.LogicalDevice); res != vk.Success {
		err := fmt.Errorf("vkDeviceWaitIdle failed: %s", ResultString(res))
		core.LogError(err.Error())
		return err
	}
	return nil
}
