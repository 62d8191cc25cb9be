package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Fence wraps a device fence together with a CPU-side signaled flag.
// The flag short-circuits waits on fences that were never handed to a
// queue submission, which happens whenever a frame is skipped after
// its fence was already reset.
type Fence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(rs RenderSystem, signaled bool) (*Fence, error) {
	handle, err := rs.CreateFence(signaled)
	if err != nil {
		return nil, err
	}
	return &Fence{
		Handle:     handle,
		IsSignaled: signaled,
	}, nil
}

// Wait blocks until the fence signals or the timeout elapses. A fence
// that is already signaled on the CPU side returns immediately.
func (f *Fence) Wait(rs RenderSystem, timeoutNs uint64) error {
	if f.IsSignaled {
		return nil
	}
	if err := rs.WaitForFence(f.Handle, timeoutNs); err != nil {
		return err
	}
	f.IsSignaled = true
	return nil
}

func (f *Fence) Reset(rs RenderSystem) error {
	if !f.IsSignaled {
		return nil
	}
	if err := rs.ResetFence(f.Handle); err != nil {
		return err
	}
	f.IsSignaled = false
	return nil
}

func (f *Fence) Destroy(rs RenderSystem) {
	if f.Handle != vk.NullFence {
		rs.DestroyFence(f.Handle)
		f.Handle = vk.NullFence
	}
	f.IsSignaled = false
}
