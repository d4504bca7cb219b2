// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"errors"
	"unsafe"

	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/mirage/core/cascade"
)

// sceneDrawMode selects how drawScene clips and shades a pass.
type sceneDrawMode int

const (
	drawModeDisplay sceneDrawMode = iota
	drawModeRefract
	drawModeReflect
)

// scenePushConstant travels with every scene draw. Scale mirrors
// the world for the reflection pass, ClipPlane culls geometry on
// the wrong side of the water, Shadows turns shadow sampling off
// in the offscreen passes.
type scenePushConstant struct {
	Scale     glm.Mat4
	ClipPlane glm.Vec4
	Shadows   uint32
}

// depthPushConstant selects the cascade a depth draw renders into.
// The cascade preview quad reuses it for the layer choice.
type depthPushConstant struct {
	Position     glm.Vec4
	CascadeIndex uint32
}

// debugToggles is the preview quad state baked into the command
// stream. Changing any field requires a rebuild.
type debugToggles struct {
	reflection   bool
	refraction   bool
	cascades     bool
	cascadeIndex int
}

// pushConstantFor returns the scene push constant of a draw mode.
// Offscreen passes clip against the water plane and skip shadows,
// the reflection pass additionally mirrors the world on Y.
func pushConstantFor(mode sceneDrawMode) scenePushConstant {
	push := scenePushConstant{
		Scale:   glm.Ident4(),
		Shadows: 1,
	}
	switch mode {
	case drawModeRefract:
		push.ClipPlane = glm.Vec4{0, 1, 0, 0}
		push.Shadows = 0
	case drawModeReflect:
		push.Scale = glm.Scale3D(1, -1, 1)
		push.ClipPlane = glm.Vec4{0, 1, 0, 0}
		push.Shadows = 0
	}
	return push
}

// debugQuadCount returns how many preview quads the toggles add to
// the final pass.
func debugQuadCount(toggles debugToggles) int {
	count := 0
	if toggles.reflection {
		count++
	}
	if toggles.refraction {
		count++
	}
	if toggles.cascades {
		count++
	}
	return count
}

func (v *Vulkan) setViewport(buffer vk.CommandBuffer, width, height uint32) {
	vk.CmdSetViewport(buffer, 0, 1, []vk.Viewport{{
		Width:    float32(width),
		Height:   float32(height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
	vk.CmdSetScissor(buffer, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: width, Height: height},
	}})
}

func (v *Vulkan) drawMesh(buffer vk.CommandBuffer, mesh *meshBuffer) {
	vk.CmdBindVertexBuffers(buffer, 0, 1, []vk.Buffer{mesh.vertexBuffer}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(buffer, mesh.indexBuffer, 0, vk.IndexTypeUint32)
	vk.CmdDrawIndexed(buffer, mesh.indexCount, 1, 0, 0, 0)
}

// drawScene records the sky and terrain draws of one pass. The
// water plane is not part of the scene, the offscreen passes feed
// it.
func (v *Vulkan) drawScene(buffer vk.CommandBuffer, mode sceneDrawMode) {
	push := pushConstantFor(mode)

	vk.CmdBindPipeline(buffer, vk.PipelineBindPointGraphics, v.pipelines.sky)
	vk.CmdBindDescriptorSets(buffer, vk.PipelineBindPointGraphics, v.pipelineLayouts.sky, 0, 1, []vk.DescriptorSet{v.descriptorSets.skysphere}, 0, nil)
	vk.CmdPushConstants(buffer, v.pipelineLayouts.sky, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit), 0, uint32(unsafe.Sizeof(push)), unsafe.Pointer(&push))
	v.drawMesh(buffer, &v.meshes.sky)

	vk.CmdBindPipeline(buffer, vk.PipelineBindPointGraphics, v.pipelines.terrain)
	vk.CmdBindDescriptorSets(buffer, vk.PipelineBindPointGraphics, v.pipelineLayouts.terrain, 0, 1, []vk.DescriptorSet{v.descriptorSets.terrain}, 0, nil)
	vk.CmdPushConstants(buffer, v.pipelineLayouts.terrain, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit), 0, uint32(unsafe.Sizeof(push)), unsafe.Pointer(&push))
	v.drawMesh(buffer, &v.meshes.terrain)
}

// drawShadowCasters records the depth-only terrain draw of one
// cascade.
func (v *Vulkan) drawShadowCasters(buffer vk.CommandBuffer, cascadeIndex uint32) {
	push := depthPushConstant{CascadeIndex: cascadeIndex}
	vk.CmdBindPipeline(buffer, vk.PipelineBindPointGraphics, v.pipelines.depthPass)
	vk.CmdBindDescriptorSets(buffer, vk.PipelineBindPointGraphics, v.pipelineLayouts.depthPass, 0, 1, []vk.DescriptorSet{v.descriptorSets.depthPass}, 0, nil)
	vk.CmdPushConstants(buffer, v.pipelineLayouts.depthPass, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, uint32(unsafe.Sizeof(push)), unsafe.Pointer(&push))
	v.drawMesh(buffer, &v.meshes.terrain)
}

// recordShadowStage renders the terrain into every cascade layer.
// The framebuffer selects the layer, the push constant selects the
// matrix.
func (v *Vulkan) recordShadowStage(buffer vk.CommandBuffer) {
	clearValues := make([]vk.ClearValue, 1)
	clearValues[0].SetDepthStencil(1, 0)

	v.setViewport(buffer, v.shadow.dim, v.shadow.dim)

	for idx := uint32(0); idx < cascade.Count; idx++ {
		rpbi := vk.RenderPassBeginInfo{
			SType:       vk.StructureTypeRenderPassBeginInfo,
			RenderPass:  v.shadow.renderPass,
			Framebuffer: v.shadow.cascades[idx].framebuffer,
			RenderArea: vk.Rect2D{
				Offset: vk.Offset2D{X: 0, Y: 0},
				Extent: vk.Extent2D{Width: v.shadow.dim, Height: v.shadow.dim},
			},
			ClearValueCount: uint32(len(clearValues)),
			PClearValues:    clearValues,
		}
		vk.CmdBeginRenderPass(buffer, &rpbi, vk.SubpassContentsInline)
		v.drawShadowCasters(buffer, idx)
		vk.CmdEndRenderPass(buffer)
	}
}

// recordOffscreenStage renders the scene into one offscreen target.
func (v *Vulkan) recordOffscreenStage(buffer vk.CommandBuffer, target *offscreenTarget, mode sceneDrawMode) {
	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor([]float32{0, 0, 0, 0})
	clearValues[1].SetDepthStencil(1, 0)

	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  v.offscreen.renderPass,
		Framebuffer: target.framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: v.offscreen.width, Height: v.offscreen.height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(buffer, &rpbi, vk.SubpassContentsInline)
	v.setViewport(buffer, v.offscreen.width, v.offscreen.height)
	v.drawScene(buffer, mode)
	vk.CmdEndRenderPass(buffer)
}

// recordFinalStage composites the scene, the water plane and any
// enabled preview quads into the swapchain framebuffer.
func (v *Vulkan) recordFinalStage(buffer vk.CommandBuffer, framebuffer vk.Framebuffer) {
	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor([]float32{0.008, 0.01, 0.023, 1})
	clearValues[1].SetDepthStencil(1, 0)

	rpbi := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  v.renderPass,
		Framebuffer: framebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: v.currentSurfaceWidth, Height: v.currentSurfaceHeight},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(buffer, &rpbi, vk.SubpassContentsInline)
	v.setViewport(buffer, v.currentSurfaceWidth, v.currentSurfaceHeight)

	v.drawScene(buffer, drawModeDisplay)

	// Water plane composites the offscreen targets.
	vk.CmdBindDescriptorSets(buffer, vk.PipelineBindPointGraphics, v.pipelineLayouts.textured, 0, 1, []vk.DescriptorSet{v.descriptorSets.waterplane}, 0, nil)
	vk.CmdBindPipeline(buffer, vk.PipelineBindPointGraphics, v.pipelines.water)
	v.drawMesh(buffer, &v.meshes.water)

	// Preview quads derive their geometry from the vertex index,
	// six vertices each, no buffers bound.
	if v.debug.reflection {
		quad := uint32(0)
		vk.CmdBindDescriptorSets(buffer, vk.PipelineBindPointGraphics, v.pipelineLayouts.debug, 0, 1, []vk.DescriptorSet{v.descriptorSets.debugQuad}, 0, nil)
		vk.CmdBindPipeline(buffer, vk.PipelineBindPointGraphics, v.pipelines.debug)
		vk.CmdPushConstants(buffer, v.pipelineLayouts.debug, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit), 0, uint32(unsafe.Sizeof(quad)), unsafe.Pointer(&quad))
		vk.CmdDraw(buffer, 6, 1, 0, 0)
	}
	if v.debug.refraction {
		quad := uint32(1)
		vk.CmdBindDescriptorSets(buffer, vk.PipelineBindPointGraphics, v.pipelineLayouts.debug, 0, 1, []vk.DescriptorSet{v.descriptorSets.debugQuad}, 0, nil)
		vk.CmdBindPipeline(buffer, vk.PipelineBindPointGraphics, v.pipelines.debug)
		vk.CmdPushConstants(buffer, v.pipelineLayouts.debug, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit), 0, uint32(unsafe.Sizeof(quad)), unsafe.Pointer(&quad))
		vk.CmdDraw(buffer, 6, 1, 0, 0)
	}
	if v.debug.cascades {
		push := depthPushConstant{CascadeIndex: uint32(v.debug.cascadeIndex)}
		vk.CmdBindDescriptorSets(buffer, vk.PipelineBindPointGraphics, v.pipelineLayouts.cascadeDebug, 0, 1, []vk.DescriptorSet{v.descriptorSets.cascadeDebug}, 0, nil)
		vk.CmdBindPipeline(buffer, vk.PipelineBindPointGraphics, v.pipelines.cascadeDebug)
		vk.CmdPushConstants(buffer, v.pipelineLayouts.cascadeDebug, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, uint32(unsafe.Sizeof(push)), unsafe.Pointer(&push))
		vk.CmdDraw(buffer, 6, 1, 0, 0)
	}

	if v.uiOverlay != nil {
		v.uiOverlay(buffer)
	}

	vk.CmdEndRenderPass(buffer)
}

// buildCommandBuffers records the full four stage frame for every
// swapchain image. The buffers replay every frame until a debug
// toggle forces a rebuild.
func (v *Vulkan) buildCommandBuffers() error {
	for idx, buffer := range v.commandBuffers {
		cbbi := vk.CommandBufferBeginInfo{
			SType: vk.StructureTypeCommandBufferBeginInfo,
			Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit),
		}
		if err := vk.Error(vk.BeginCommandBuffer(buffer, &cbbi)); err != nil {
			return errors.New("vk.BeginCommandBuffer(): " + err.Error())
		}

		v.recordShadowStage(buffer)
		v.recordOffscreenStage(buffer, &v.offscreen.refraction, drawModeRefract)
		v.recordOffscreenStage(buffer, &v.offscreen.reflection, drawModeReflect)
		v.recordFinalStage(buffer, v.framebuffers[idx])

		if err := vk.Error(vk.EndCommandBuffer(buffer)); err != nil {
			return errors.New("vk.EndCommandBuffer(): " + err.Error())
		}
	}
	return nil
}

// rebuildCommandBuffers stops the device, resets the pool and
// records the stream again. Callers hold the frame mutex.
func (v *Vulkan) rebuildCommandBuffers() error {
	vk.DeviceWaitIdle(v.logicalDevice)
	if err := vk.Error(vk.ResetCommandPool(v.logicalDevice, v.commandPool, 0)); err != nil {
		return errors.New("vk.ResetCommandPool(): " + err.Error())
	}
	return v.buildCommandBuffers()
}

// SetDebugReflection implements interface
func (v *Vulkan) SetDebugReflection(enabled bool) error {
	v.frameLock.Lock()
	defer v.frameLock.Unlock()
	if v.debug.reflection == enabled {
		return nil
	}
	v.debug.reflection = enabled
	return v.rebuildCommandBuffers()
}

// SetDebugRefraction implements interface
func (v *Vulkan) SetDebugRefraction(enabled bool) error {
	v.frameLock.Lock()
	defer v.frameLock.Unlock()
	if v.debug.refraction == enabled {
		return nil
	}
	v.debug.refraction = enabled
	return v.rebuildCommandBuffers()
}

// SetDebugCascades implements interface
func (v *Vulkan) SetDebugCascades(enabled bool) error {
	v.frameLock.Lock()
	defer v.frameLock.Unlock()
	if v.debug.cascades == enabled {
		return nil
	}
	v.debug.cascades = enabled
	return v.rebuildCommandBuffers()
}

// SetDebugCascadeIndex implements interface
func (v *Vulkan) SetDebugCascadeIndex(index int) error {
	if index < 0 || index >= cascade.Count {
		return errors.New("cascade index out of range")
	}
	v.frameLock.Lock()
	defer v.frameLock.Unlock()
	if v.debug.cascadeIndex == index {
		return nil
	}
	v.debug.cascadeIndex = index
	if !v.debug.cascades {
		return nil
	}
	return v.rebuildCommandBuffers()
}

// SetUIOverlay implements interface
func (v *Vulkan) SetUIOverlay(record func(vk.CommandBuffer)) error {
	v.frameLock.Lock()
	defer v.frameLock.Unlock()
	v.uiOverlay = record
	return v.rebuildCommandBuffers()
}
