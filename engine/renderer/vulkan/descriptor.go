package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/prismgfx/prism/engine/core"
)

// DescriptorSetLayout wraps a set layout handle.
type DescriptorSetLayout struct {
	Handle vk.DescriptorSetLayout
}

func NewDescriptorSetLayout(ctx *Context, bindings []vk.DescriptorSetLayoutBinding) (*DescriptorSetLayout, error) {
	createInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	layout := &DescriptorSetLayout{}
	if res := vk.CreateDescriptorSetLayout(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &layout.Handle); res != vk.Success {
		err := fmt.Errorf("failed to create descriptor set layout: %s", ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	return layout, nil
}

func (l *DescriptorSetLayout) Destroy(ctx *Context) {
	if l.Handle != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(ctx.Device.LogicalDevice, l.Handle, ctx.Allocator)
		l.Handle = vk.NullDescriptorSetLayout
	}
}
