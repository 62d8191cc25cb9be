package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/prismgfx/prism/engine/core"
)

// GraphicsPipeline holds a graphics pipeline and its layout.
type GraphicsPipeline struct {
	Handle vk.Pipeline
	Layout vk.PipelineLayout
}

// GraphicsPipelineConfig describes what to build the pipeline from. Color
// attachment formats select the render pass the pipeline is built against;
// they must match the formats rendering is later begun with.
type GraphicsPipelineConfig struct {
	Stages                 []vk.PipelineShaderStageCreateInfo
	ColorAttachmentFormats []vk.Format
	DescriptorSetLayouts   []vk.DescriptorSetLayout
	PushConstantRanges     []vk.PushConstantRange
	Topology               vk.PrimitiveTopology
	CullMode               vk.CullModeFlagBits
	IsWireframe            bool
}

func NewGraphicsPipeline(ctx *Context, config *GraphicsPipelineConfig) (*GraphicsPipeline, error) {
	pipeline := &GraphicsPipeline{}

	layoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(config.DescriptorSetLayouts)),
		PSetLayouts:            config.DescriptorSetLayouts,
		PushConstantRangeCount: uint32(len(config.PushConstantRanges)),
		PPushConstantRanges:    config.PushConstantRanges,
	}
	if res := vk.CreatePipelineLayout(ctx.Device.LogicalDevice, &layoutCreateInfo, ctx.Allocator, &pipeline.Layout); res != vk.Success {
		err := fmt.Errorf("failed to create pipeline layout: %s", ResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType: vk.StructureTypePipelineVertexInputStateCreateInfo,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: config.Topology,
	}

	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterization := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		LineWidth:   1.0,
		FrontFace:   vk.FrontFaceCounterClockwise,
		CullMode:    vk.CullModeFlags(config.CullMode),
	}
	if config.IsWireframe {
		rasterization.PolygonMode = vk.PolygonModeLine
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1.0,
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(config.ColorAttachmentFormats))
	for i := range blendAttachments {
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			ColorWriteMask: vk.ColorComponentFlags(
				vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
		}
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Load and store ops do not affect render pass compatibility, so any
	// cached pass with matching formats works here.
	pass, err := ctx.renderPassForFormats(config.ColorAttachmentFormats)
	if err != nil {
		pipeline.Destroy(ctx)
		return nil, err
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(config.Stages)),
		PStages:             config.Stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterization,
		PMultisampleState:   &multisample,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              pipeline.Layout,
		RenderPass:          pass,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(ctx.Device.LogicalDevice, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, ctx.Allocator, pipelines); res != vk.Success {
		err := fmt.Errorf("failed to create graphics pipeline: %s", ResultString(res))
		core.LogError(err.Error())
		pipeline.Destroy(ctx)
		return nil, err
	}
	pipeline.Handle = pipelines[0]

	core.LogDebug("graphics pipeline created")
	return pipeline, nil
}

func (p *GraphicsPipeline) Destroy(ctx *Context) {
	if p.Handle != vk.NullPipeline {
		vk.DestroyPipeline(ctx.Device.LogicalDevice, p.Handle, ctx.Allocator)
		p.Handle = vk.NullPipeline
	}
	if p.Layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(ctx.Device.LogicalDevice, p.Layout, ctx.Allocator)
		p.Layout = vk.NullPipelineLayout
	}
}
