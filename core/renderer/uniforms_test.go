// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"testing"
	"unsafe"

	qt "github.com/frankban/quicktest"
)

// The uniform structs are copied into device memory verbatim, any
// change to their size or field offsets breaks the std140 layouts
// the shaders declare.

func TestSceneUniformLayout(t *testing.T) {
	c := qt.New(t)
	var u sceneUniform
	c.Assert(unsafe.Sizeof(u), qt.Equals, uintptr(144))
	c.Assert(unsafe.Offsetof(u.Model), qt.Equals, uintptr(64))
	c.Assert(unsafe.Offsetof(u.LightDir), qt.Equals, uintptr(128))
}

func TestTerrainUniformLayout(t *testing.T) {
	c := qt.New(t)
	var u terrainUniform
	c.Assert(unsafe.Sizeof(u), qt.Equals, uintptr(240))
	c.Assert(unsafe.Offsetof(u.Layers), qt.Equals, uintptr(144))
}

func TestWaterUniformLayout(t *testing.T) {
	c := qt.New(t)
	var u waterUniform
	c.Assert(unsafe.Sizeof(u), qt.Equals, uintptr(176))
	c.Assert(unsafe.Offsetof(u.CameraPos), qt.Equals, uintptr(128))
	c.Assert(unsafe.Offsetof(u.LightDir), qt.Equals, uintptr(144))
	c.Assert(unsafe.Offsetof(u.Time), qt.Equals, uintptr(160))
}

func TestCascadeUniformLayout(t *testing.T) {
	c := qt.New(t)
	var u cascadeUniform
	c.Assert(unsafe.Sizeof(u), qt.Equals, uintptr(352))
	c.Assert(unsafe.Offsetof(u.ViewProj), qt.Equals, uintptr(16))
	c.Assert(unsafe.Offsetof(u.InverseView), qt.Equals, uintptr(272))
	c.Assert(unsafe.Offsetof(u.LightDir), qt.Equals, uintptr(336))
}

func TestDepthUniformLayout(t *testing.T) {
	c := qt.New(t)
	var u depthUniform
	c.Assert(unsafe.Sizeof(u), qt.Equals, uintptr(256))
}

func TestPushConstantLayout(t *testing.T) {
	c := qt.New(t)

	var scene scenePushConstant
	c.Assert(unsafe.Sizeof(scene), qt.Equals, uintptr(84))
	c.Assert(unsafe.Offsetof(scene.ClipPlane), qt.Equals, uintptr(64))
	c.Assert(unsafe.Offsetof(scene.Shadows), qt.Equals, uintptr(80))

	var depth depthPushConstant
	c.Assert(unsafe.Sizeof(depth), qt.Equals, uintptr(20))
	c.Assert(unsafe.Offsetof(depth.CascadeIndex), qt.Equals, uintptr(16))
}

func TestAdvanceWaterClock(t *testing.T) {
	c := qt.New(t)

	c.Assert(advanceWaterClock(0, 0), qt.Equals, float32(0))
	c.Assert(advanceWaterClock(0, 1), qt.Equals, float32(waterClockRate))
	c.Assert(advanceWaterClock(0.5, 0), qt.Equals, float32(0.5))

	// The phase wraps instead of growing without bound.
	wrapped := advanceWaterClock(0.999, 1)
	c.Assert(wrapped >= 0 && wrapped < 1, qt.Equals, true)
}
