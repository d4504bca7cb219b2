// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"fmt"
	"math"
	"unsafe"

	vk "github.com/devblok/vulkan"
	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/mirage/core/cascade"
	"github.com/devblok/mirage/model"
)

// Uniform block layouts are std140, padding is explicit so that
// unsafe.Sizeof matches what the shaders expect.

// sceneUniform feeds the sky pipeline. Model carries the view
// matrix, the sky keeps rotation only.
type sceneUniform struct {
	Projection glm.Mat4
	Model      glm.Mat4
	LightDir   glm.Vec4
}

// terrainUniform extends the scene block with the height ranges of
// the terrain texture layers. X is the base height, Y the blend range.
type terrainUniform struct {
	Projection glm.Mat4
	Model      glm.Mat4
	LightDir   glm.Vec4
	Layers     [model.TerrainLayerCount]glm.Vec4
}

type waterUniform struct {
	Projection glm.Mat4
	Model      glm.Mat4
	CameraPos  glm.Vec4
	LightDir   glm.Vec4
	Time       float32
	_          [3]float32
}

// cascadeUniform is the per-frame cascade state every lit material
// samples shadows with. Split depths are view space, one per vector
// component.
type cascadeUniform struct {
	Splits      glm.Vec4
	ViewProj    [cascade.Count]glm.Mat4
	InverseView glm.Mat4
	LightDir    glm.Vec4
}

// depthUniform feeds the depth-only pass, the cascade index picks
// the matrix through a push constant.
type depthUniform struct {
	ViewProj [cascade.Count]glm.Mat4
}

// uniformBuffer is a host coherent buffer kept mapped descriptor,
// rewritten every frame with the upload method.
type uniformBuffer struct {
	buffer     vk.Buffer
	memory     vk.DeviceMemory
	size       uintptr
	descriptor vk.DescriptorBufferInfo
}

func (v *Vulkan) createUniformBuffer(out *uniformBuffer, size uintptr, name string) error {
	if err := v.createBuffer(&out.buffer, int(size), vk.BufferUsageUniformBufferBit, vk.SharingModeExclusive); err != nil {
		return fmt.Errorf("createUniformBuffer(%s): %s", name, err.Error())
	}
	v.cleanup.push(name+".buffer", func() {
		vk.DestroyBuffer(v.logicalDevice, out.buffer, nil)
	})

	var memoryRequirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(v.logicalDevice, out.buffer, &memoryRequirements)
	memoryRequirements.Deref()

	if err := v.allocateMemory(&out.memory, memoryRequirements.Size, memoryRequirements.MemoryTypeBits, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit); err != nil {
		return fmt.Errorf("createUniformBuffer(%s): %s", name, err.Error())
	}
	v.cleanup.push(name+".memory", func() {
		vk.FreeMemory(v.logicalDevice, out.memory, nil)
	})

	if err := vk.Error(vk.BindBufferMemory(v.logicalDevice, out.buffer, out.memory, 0)); err != nil {
		return fmt.Errorf("vk.BindBufferMemory(%s): %s", name, err.Error())
	}

	out.size = size
	out.descriptor = vk.DescriptorBufferInfo{
		Buffer: out.buffer,
		Offset: 0,
		Range:  vk.DeviceSize(size),
	}
	return nil
}

// upload rewrites the whole buffer from the block pointed to by src.
// The memory is host coherent, no flush needed.
func (u *uniformBuffer) upload(device vk.Device, src unsafe.Pointer) {
	var mappedMemory unsafe.Pointer
	vk.MapMemory(device, u.memory, 0, vk.DeviceSize(u.size), 0, &mappedMemory)
	castMemory := *(*[]byte)(unsafe.Pointer(&sliceHeader{
		Data: uintptr(mappedMemory),
		Cap:  int(u.size),
		Len:  int(u.size),
	}))
	source := *(*[]byte)(unsafe.Pointer(&sliceHeader{
		Data: uintptr(src),
		Cap:  int(u.size),
		Len:  int(u.size),
	}))
	copy(castMemory, source)
	vk.UnmapMemory(device, u.memory)
}

func (v *Vulkan) prepareUniformBuffers() error {
	if err := v.createUniformBuffer(&v.uniformBuffers.water, unsafe.Sizeof(waterUniform{}), "uniform.water"); err != nil {
		return err
	}
	if err := v.createUniformBuffer(&v.uniformBuffers.terrain, unsafe.Sizeof(terrainUniform{}), "uniform.terrain"); err != nil {
		return err
	}
	if err := v.createUniformBuffer(&v.uniformBuffers.sky, unsafe.Sizeof(sceneUniform{}), "uniform.sky"); err != nil {
		return err
	}
	if err := v.createUniformBuffer(&v.uniformBuffers.csm, unsafe.Sizeof(cascadeUniform{}), "uniform.csm"); err != nil {
		return err
	}
	if err := v.createUniformBuffer(&v.uniformBuffers.depth, unsafe.Sizeof(depthUniform{}), "uniform.depth"); err != nil {
		return err
	}
	v.updateUniformBuffers()
	return nil
}

// updateUniformBuffers rewrites every per-frame block from current
// camera, light and timer state. Called once per frame before the
// recorded command buffer replays.
func (v *Vulkan) updateUniformBuffers() {
	view := v.camera.View()
	projection := v.camera.Perspective()
	projection[5] *= -1 // Flip from OpenGl to Vulkan projection

	position := v.camera.Position()
	lightDir := glm.Vec3{-v.lightPosition[0], -v.lightPosition[1], -v.lightPosition[2]}.Normalize()
	lightDir4 := glm.Vec4{lightDir.X(), lightDir.Y(), lightDir.Z(), 0}

	water := waterUniform{
		Projection: projection,
		Model:      view,
		CameraPos:  glm.Vec4{position.X(), position.Y(), position.Z(), 0},
		LightDir:   lightDir4,
		Time:       float32(math.Sin(float64(glm.DegToRad(v.timer * 360)))),
	}
	v.uniformBuffers.water.upload(v.logicalDevice, unsafe.Pointer(&water))

	terrain := terrainUniform{
		Projection: projection,
		Model:      view,
		LightDir:   lightDir4,
		Layers:     v.terrainLayers,
	}
	v.uniformBuffers.terrain.upload(v.logicalDevice, unsafe.Pointer(&terrain))

	// The sky follows the camera, only the rotation part of the
	// view matrix survives.
	sky := sceneUniform{
		Projection: projection,
		Model:      view.Mat3().Mat4(),
		LightDir:   lightDir4,
	}
	v.uniformBuffers.sky.upload(v.logicalDevice, unsafe.Pointer(&sky))

	csm := cascadeUniform{
		InverseView: view.Inv(),
		LightDir:    lightDir4,
	}
	depth := depthUniform{}
	v.cascadeLock.Lock()
	cascades := v.cascades
	v.cascadeLock.Unlock()
	for idx, c := range cascades {
		csm.Splits[idx] = c.SplitDepth
		csm.ViewProj[idx] = c.ViewProj
		depth.ViewProj[idx] = c.ViewProj
	}
	v.uniformBuffers.csm.upload(v.logicalDevice, unsafe.Pointer(&csm))
	v.uniformBuffers.depth.upload(v.logicalDevice, unsafe.Pointer(&depth))
}

// sliceHeader mirrors reflect.SliceHeader with an unsafe.Pointer
// free layout for casting mapped GPU memory.
type sliceHeader struct {
	Data uintptr
	Len  int
	Cap  int
}
