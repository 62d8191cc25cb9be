package vulkan

import (
	"encoding/binary"
	"fmt"
	"os"

	vk "github.com/goki/vulkan"

	"github.com/prismgfx/prism/engine/core"
)

// ShaderModule wraps a compiled SPIR-V module together with the stage it
// is bound to.
type ShaderModule struct {
	Handle vk.ShaderModule
	Stage  vk.ShaderStageFlagBits
}

// NewShaderModuleFromFile loads a .spv file from disk and builds a module
// out of it.
func NewShaderModuleFromFile(ctx *Context, path string, stage vk.ShaderStageFlagBits) (*ShaderModule, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		core.LogError("unable to read shader file %s: %s", path, err)
		return nil, err
	}
	return NewShaderModule(ctx, code, stage)
}

func NewShaderModule(ctx *Context, code []byte, stage vk.ShaderStageFlagBits) (*ShaderModule, error) {
	words, err := spirvWords(code)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    words,
	}

	var handle vk.ShaderModule
	if res := vk.CreateShaderModule(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create shader module: %s", ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	return &ShaderModule{Handle: handle, Stage: stage}, nil
}

// StageCreateInfo builds the pipeline stage description with the module's
// entry point fixed to main.
func (sm *ShaderModule) StageCreateInfo() vk.PipelineShaderStageCreateInfo {
	return vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  sm.Stage,
		Module: sm.Handle,
		PName:  VulkanSafeString("main"),
	}
}

func (sm *ShaderModule) Destroy(ctx *Context) {
	if sm.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(ctx.Device.LogicalDevice, sm.Handle, ctx.Allocator)
		sm.Handle = vk.NullShaderModule
	}
}

const spirvMagic = 0x07230203

func spirvWords(code []byte) ([]uint32, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("shader code size %d is not a multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("shader code is not SPIR-V, got magic 0x%08x", words[0])
	}
	return words, nil
}
