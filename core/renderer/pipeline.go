// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/devblok/vulkan"

	"github.com/devblok/mirage/core"
	"github.com/devblok/mirage/core/cascade"
	"github.com/devblok/mirage/model"
)

// Shader names the pipelines look up in the shader directory.
const (
	shaderTerrain      = "terrain"
	shaderSky          = "skysphere"
	shaderWater        = "mirror"
	shaderDebugQuad    = "quad"
	shaderCascadeDebug = "debug_csm"
	shaderDepthPass    = "depthpass"
)

// descriptorSetLayouts groups the set layouts by material family.
// textured serves the water plane, the debug quads and the
// per-cascade preview sets.
type descriptorSetLayouts struct {
	textured     vk.DescriptorSetLayout
	terrain      vk.DescriptorSetLayout
	sky          vk.DescriptorSetLayout
	depthPass    vk.DescriptorSetLayout
	cascadeDebug vk.DescriptorSetLayout
}

type pipelineLayouts struct {
	textured     vk.PipelineLayout
	debug        vk.PipelineLayout
	terrain      vk.PipelineLayout
	sky          vk.PipelineLayout
	depthPass    vk.PipelineLayout
	cascadeDebug vk.PipelineLayout
}

type pipelineSet struct {
	water        vk.Pipeline
	debug        vk.Pipeline
	terrain      vk.Pipeline
	sky          vk.Pipeline
	depthPass    vk.Pipeline
	cascadeDebug vk.Pipeline
}

type descriptorSets struct {
	waterplane   vk.DescriptorSet
	debugQuad    vk.DescriptorSet
	terrain      vk.DescriptorSet
	skysphere    vk.DescriptorSet
	depthPass    vk.DescriptorSet
	cascadeDebug vk.DescriptorSet

	// One set per cascade for the preview quad. They all sample the
	// same layered depth view, the quad shader selects the layer from
	// the push constant.
	cascades [cascade.Count]vk.DescriptorSet
}

func uniformBinding(binding uint32, stages vk.ShaderStageFlagBits) vk.DescriptorSetLayoutBinding {
	return vk.DescriptorSetLayoutBinding{
		Binding:         binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		StageFlags:      vk.ShaderStageFlags(stages),
	}
}

func samplerBinding(binding uint32) vk.DescriptorSetLayoutBinding {
	return vk.DescriptorSetLayoutBinding{
		Binding:         binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}
}

func (v *Vulkan) createSetLayout(out *vk.DescriptorSetLayout, name string, bindings []vk.DescriptorSetLayoutBinding) error {
	dslci := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	if err := vk.Error(vk.CreateDescriptorSetLayout(v.logicalDevice, &dslci, nil, out)); err != nil {
		return fmt.Errorf("vk.CreateDescriptorSetLayout(%s): %s", name, err.Error())
	}
	layout := *out
	v.cleanup.push("setLayout."+name, func() {
		vk.DestroyDescriptorSetLayout(v.logicalDevice, layout, nil)
	})
	return nil
}

func (v *Vulkan) createDescriptorSetLayouts() error {
	vertexFragment := vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit

	if err := v.createSetLayout(&v.setLayouts.textured, "textured", []vk.DescriptorSetLayoutBinding{
		uniformBinding(0, vertexFragment),
		samplerBinding(1),
		samplerBinding(2),
		samplerBinding(3),
		samplerBinding(4),
		uniformBinding(5, vk.ShaderStageFragmentBit),
	}); err != nil {
		return err
	}

	if err := v.createSetLayout(&v.setLayouts.terrain, "terrain", []vk.DescriptorSetLayoutBinding{
		uniformBinding(0, vertexFragment),
		samplerBinding(1),
		samplerBinding(2),
		samplerBinding(3),
		uniformBinding(4, vk.ShaderStageFragmentBit),
	}); err != nil {
		return err
	}

	if err := v.createSetLayout(&v.setLayouts.sky, "sky", []vk.DescriptorSetLayoutBinding{
		uniformBinding(0, vk.ShaderStageVertexBit),
		samplerBinding(1),
	}); err != nil {
		return err
	}

	if err := v.createSetLayout(&v.setLayouts.depthPass, "depthPass", []vk.DescriptorSetLayoutBinding{
		uniformBinding(0, vk.ShaderStageVertexBit),
	}); err != nil {
		return err
	}

	return v.createSetLayout(&v.setLayouts.cascadeDebug, "cascadeDebug", []vk.DescriptorSetLayoutBinding{
		samplerBinding(0),
	})
}

func (v *Vulkan) createPipelineLayout(out *vk.PipelineLayout, name string, setLayout vk.DescriptorSetLayout, pushRanges []vk.PushConstantRange) error {
	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: uint32(len(pushRanges)),
		PPushConstantRanges:    pushRanges,
	}
	if err := vk.Error(vk.CreatePipelineLayout(v.logicalDevice, &plci, nil, out)); err != nil {
		return fmt.Errorf("vk.CreatePipelineLayout(%s): %s", name, err.Error())
	}
	layout := *out
	v.cleanup.push("pipelineLayout."+name, func() {
		vk.DestroyPipelineLayout(v.logicalDevice, layout, nil)
	})
	return nil
}

func (v *Vulkan) createPipelineLayouts() error {
	vertexFragment := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit)
	scenePush := []vk.PushConstantRange{{
		StageFlags: vertexFragment,
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(scenePushConstant{})),
	}}
	depthPush := []vk.PushConstantRange{{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(depthPushConstant{})),
	}}
	debugPush := []vk.PushConstantRange{{
		StageFlags: vertexFragment,
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(uint32(0))),
	}}

	if err := v.createPipelineLayout(&v.pipelineLayouts.textured, "textured", v.setLayouts.textured, nil); err != nil {
		return err
	}
	if err := v.createPipelineLayout(&v.pipelineLayouts.debug, "debug", v.setLayouts.textured, debugPush); err != nil {
		return err
	}
	if err := v.createPipelineLayout(&v.pipelineLayouts.terrain, "terrain", v.setLayouts.terrain, scenePush); err != nil {
		return err
	}
	if err := v.createPipelineLayout(&v.pipelineLayouts.sky, "sky", v.setLayouts.sky, scenePush); err != nil {
		return err
	}
	if err := v.createPipelineLayout(&v.pipelineLayouts.depthPass, "depthPass", v.setLayouts.depthPass, depthPush); err != nil {
		return err
	}
	return v.createPipelineLayout(&v.pipelineLayouts.cascadeDebug, "cascadeDebug", v.setLayouts.cascadeDebug, depthPush)
}

// shaderStages returns the vertex and fragment stage infos of the
// named shader pair.
func (v *Vulkan) shaderStages(name string) ([]vk.PipelineShaderStageCreateInfo, error) {
	var stages []vk.PipelineShaderStageCreateInfo
	for _, shader := range v.shaders {
		if shader.Name() != name {
			continue
		}

		var stage vk.ShaderStageFlagBits
		switch shader.Type() {
		case core.VertexShaderType:
			stage = vk.ShaderStageVertexBit
		case core.FragmentShaderType:
			stage = vk.ShaderStageFragmentBit
		default:
			return nil, errors.New("unsupported shader type attempted creation")
		}

		shaderModule, ok := shader.ShaderModule().(vk.ShaderModule)
		if !ok {
			return nil, errors.New("failed to assert shader module to it's original type")
		}

		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stage,
			Module: shaderModule,
			PName:  "main\x00",
		})
	}
	if len(stages) != 2 {
		return nil, fmt.Errorf("shader %s: expected a vertex and fragment pair, have %d stages", name, len(stages))
	}
	return stages, nil
}

// pipelineVariant is the state that differs between the scene
// pipelines, everything else is shared.
type pipelineVariant struct {
	shader     string
	layout     vk.PipelineLayout
	renderPass vk.RenderPass

	depthTest       bool
	depthWrite      bool
	depthClamp      bool
	colorAttachment bool
}

func (v *Vulkan) buildPipeline(out *vk.Pipeline, name string, variant pipelineVariant) error {
	stages, err := v.shaderStages(variant.shader)
	if err != nil {
		return err
	}

	vertexAttributeDescriptions := model.VertexAttributeDescriptions()
	vertexBindingDescriptions := model.VertexBindingDescriptions()

	boolean := func(b bool) vk.Bool32 {
		if b {
			return vk.True
		}
		return vk.False
	}

	colorBlendState := &vk.PipelineColorBlendStateCreateInfo{
		SType: vk.StructureTypePipelineColorBlendStateCreateInfo,
	}
	if variant.colorAttachment {
		colorBlendState.AttachmentCount = 1
		colorBlendState.PAttachments = []vk.PipelineColorBlendAttachmentState{{
			ColorWriteMask: 0xF,
			BlendEnable:    vk.False,
		}}
	}

	gpci := []vk.GraphicsPipelineCreateInfo{{
		SType:      vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount: uint32(len(stages)),
		PStages:    stages,
		PVertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexAttributeDescriptionCount: uint32(len(vertexAttributeDescriptions)),
			PVertexAttributeDescriptions:    vertexAttributeDescriptions,
			VertexBindingDescriptionCount:   uint32(len(vertexBindingDescriptions)),
			PVertexBindingDescriptions:      vertexBindingDescriptions,
		},
		PInputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology: vk.PrimitiveTopologyTriangleList,
		},
		PViewportState: &vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		PRasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			SType:            vk.StructureTypePipelineRasterizationStateCreateInfo,
			PolygonMode:      vk.PolygonModeFill,
			CullMode:         vk.CullModeFlags(vk.CullModeNone),
			FrontFace:        vk.FrontFaceClockwise,
			DepthClampEnable: boolean(variant.depthClamp),
			LineWidth:        1.0,
		},
		PDepthStencilState: &vk.PipelineDepthStencilStateCreateInfo{
			SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:       boolean(variant.depthTest),
			DepthWriteEnable:      boolean(variant.depthWrite),
			DepthCompareOp:        vk.CompareOpLessOrEqual,
			DepthBoundsTestEnable: vk.False,
			Back: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
			StencilTestEnable: vk.False,
			Front: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
		},
		PMultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
		},
		PColorBlendState: colorBlendState,
		PDynamicState: &vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates: []vk.DynamicState{
				vk.DynamicStateScissor,
				vk.DynamicStateViewport,
			},
		},
		Layout:     variant.layout,
		RenderPass: variant.renderPass,
	}}

	pipelines := make([]vk.Pipeline, len(gpci))
	if err := vk.Error(vk.CreateGraphicsPipelines(v.logicalDevice, v.pipelineCache, uint32(len(gpci)), gpci, nil, pipelines)); err != nil {
		return fmt.Errorf("vk.CreateGraphicsPipelines(%s): %s", name, err.Error())
	}
	*out = pipelines[0]
	pipeline := pipelines[0]
	v.cleanup.push("pipeline."+name, func() {
		vk.DestroyPipeline(v.logicalDevice, pipeline, nil)
	})
	return nil
}

func (v *Vulkan) createGraphicsPipelines() error {
	// Preview quads draw on top of everything, no depth test.
	if err := v.buildPipeline(&v.pipelines.debug, "debug", pipelineVariant{
		shader:          shaderDebugQuad,
		layout:          v.pipelineLayouts.debug,
		renderPass:      v.renderPass,
		colorAttachment: true,
	}); err != nil {
		return err
	}
	if err := v.buildPipeline(&v.pipelines.cascadeDebug, "cascadeDebug", pipelineVariant{
		shader:          shaderCascadeDebug,
		layout:          v.pipelineLayouts.cascadeDebug,
		renderPass:      v.renderPass,
		colorAttachment: true,
	}); err != nil {
		return err
	}
	if err := v.buildPipeline(&v.pipelines.water, "water", pipelineVariant{
		shader:          shaderWater,
		layout:          v.pipelineLayouts.textured,
		renderPass:      v.renderPass,
		depthTest:       true,
		depthWrite:      true,
		colorAttachment: true,
	}); err != nil {
		return err
	}
	if err := v.buildPipeline(&v.pipelines.terrain, "terrain", pipelineVariant{
		shader:          shaderTerrain,
		layout:          v.pipelineLayouts.terrain,
		renderPass:      v.renderPass,
		depthTest:       true,
		depthWrite:      true,
		colorAttachment: true,
	}); err != nil {
		return err
	}
	// The sky tests against the far plane but never writes depth.
	if err := v.buildPipeline(&v.pipelines.sky, "sky", pipelineVariant{
		shader:          shaderSky,
		layout:          v.pipelineLayouts.sky,
		renderPass:      v.renderPass,
		depthTest:       true,
		colorAttachment: true,
	}); err != nil {
		return err
	}
	return v.buildPipeline(&v.pipelines.depthPass, "depthPass", pipelineVariant{
		shader:     shaderDepthPass,
		layout:     v.pipelineLayouts.depthPass,
		renderPass: v.shadow.renderPass,
		depthTest:  true,
		depthWrite: true,
		depthClamp: v.depthClampAvailable,
	})
}

func (v *Vulkan) createDescriptorPool() error {
	poolSizes := []vk.DescriptorPoolSize{
		{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 32,
		},
		{
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 32,
		},
	}
	dpci := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       16,
	}

	var pool vk.DescriptorPool
	if err := vk.Error(vk.CreateDescriptorPool(v.logicalDevice, &dpci, nil, &pool)); err != nil {
		return fmt.Errorf("vk.CreateDescriptorPool(): %s", err.Error())
	}
	v.descriptorPool = pool
	v.cleanup.push("descriptorPool", func() {
		vk.DestroyDescriptorPool(v.logicalDevice, v.descriptorPool, nil)
	})
	return nil
}

func (v *Vulkan) allocateDescriptorSet(out *vk.DescriptorSet, name string, layout vk.DescriptorSetLayout) error {
	dsai := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     v.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if err := vk.Error(vk.AllocateDescriptorSets(v.logicalDevice, &dsai, &sets[0])); err != nil {
		return fmt.Errorf("vk.AllocateDescriptorSets(%s): %s", name, err.Error())
	}
	*out = sets[0]
	return nil
}

func bufferWrite(set vk.DescriptorSet, binding uint32, info vk.DescriptorBufferInfo) vk.WriteDescriptorSet {
	return vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo:     []vk.DescriptorBufferInfo{info},
	}
}

func imageWrite(set vk.DescriptorSet, binding uint32, info vk.DescriptorImageInfo) vk.WriteDescriptorSet {
	return vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo:      []vk.DescriptorImageInfo{info},
	}
}

func (v *Vulkan) createDescriptorSets() error {
	type allocation struct {
		out    *vk.DescriptorSet
		name   string
		layout vk.DescriptorSetLayout
	}
	allocations := []allocation{
		{&v.descriptorSets.waterplane, "waterplane", v.setLayouts.textured},
		{&v.descriptorSets.debugQuad, "debugQuad", v.setLayouts.textured},
		{&v.descriptorSets.terrain, "terrain", v.setLayouts.terrain},
		{&v.descriptorSets.skysphere, "skysphere", v.setLayouts.sky},
		{&v.descriptorSets.depthPass, "depthPass", v.setLayouts.depthPass},
		{&v.descriptorSets.cascadeDebug, "cascadeDebug", v.setLayouts.cascadeDebug},
	}
	for idx := range v.descriptorSets.cascades {
		allocations = append(allocations, allocation{
			&v.descriptorSets.cascades[idx],
			fmt.Sprintf("cascade[%d]", idx),
			v.setLayouts.textured,
		})
	}
	for _, alloc := range allocations {
		if err := v.allocateDescriptorSet(alloc.out, alloc.name, alloc.layout); err != nil {
			return err
		}
	}

	shadowMap := v.shadow.descriptor

	writes := []vk.WriteDescriptorSet{
		bufferWrite(v.descriptorSets.waterplane, 0, v.uniformBuffers.water.descriptor),
		imageWrite(v.descriptorSets.waterplane, 1, v.offscreen.refraction.descriptor),
		imageWrite(v.descriptorSets.waterplane, 2, v.offscreen.reflection.descriptor),
		imageWrite(v.descriptorSets.waterplane, 3, v.textures.waterNormal.descriptor),
		imageWrite(v.descriptorSets.waterplane, 4, shadowMap),
		bufferWrite(v.descriptorSets.waterplane, 5, v.uniformBuffers.csm.descriptor),

		imageWrite(v.descriptorSets.debugQuad, 1, v.offscreen.reflection.descriptor),
		imageWrite(v.descriptorSets.debugQuad, 2, v.offscreen.refraction.descriptor),

		bufferWrite(v.descriptorSets.terrain, 0, v.uniformBuffers.terrain.descriptor),
		imageWrite(v.descriptorSets.terrain, 1, v.textures.heightmap.descriptor),
		imageWrite(v.descriptorSets.terrain, 2, v.textures.terrainArray.descriptor),
		imageWrite(v.descriptorSets.terrain, 3, shadowMap),
		bufferWrite(v.descriptorSets.terrain, 4, v.uniformBuffers.csm.descriptor),

		bufferWrite(v.descriptorSets.skysphere, 0, v.uniformBuffers.sky.descriptor),
		imageWrite(v.descriptorSets.skysphere, 1, v.textures.sky.descriptor),

		bufferWrite(v.descriptorSets.depthPass, 0, v.uniformBuffers.depth.descriptor),

		imageWrite(v.descriptorSets.cascadeDebug, 0, shadowMap),
	}

	// Every cascade preview set samples the same layered view, the
	// layer index travels in the push constant.
	for _, set := range v.descriptorSets.cascades {
		writes = append(writes,
			bufferWrite(set, 0, v.uniformBuffers.depth.descriptor),
			imageWrite(set, 1, shadowMap),
		)
	}

	vk.UpdateDescriptorSets(v.logicalDevice, uint32(len(writes)), writes, 0, nil)
	return nil
}
