// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/mirage/core"
)

func TestApplyDefaults(t *testing.T) {
	c := qt.New(t)

	var cfg core.RendererConfiguration
	applyDefaults(&cfg)

	c.Assert(cfg.SwapchainSize, qt.Equals, uint32(3))
	c.Assert(cfg.ScreenWidth, qt.Equals, uint32(1280))
	c.Assert(cfg.ScreenHeight, qt.Equals, uint32(720))
	c.Assert(cfg.ShaderDirectory, qt.Equals, "./shaders")
	c.Assert(cfg.CascadeLambda, qt.Equals, float32(defaultCascadeLambda))
	c.Assert(cfg.LightPosition, qt.Equals, defaultLightPosition)
	c.Assert(cfg.DeviceExtensions, qt.DeepEquals, []string{"VK_KHR_swapchain"})
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	c := qt.New(t)

	cfg := core.RendererConfiguration{
		SwapchainSize: 2,
		ScreenWidth:   1920,
		ScreenHeight:  1080,
		CascadeLambda: 0.5,
		LightPosition: [3]float32{1, 2, 3},
	}
	applyDefaults(&cfg)

	c.Assert(cfg.SwapchainSize, qt.Equals, uint32(2))
	c.Assert(cfg.ScreenWidth, qt.Equals, uint32(1920))
	c.Assert(cfg.ScreenHeight, qt.Equals, uint32(1080))
	c.Assert(cfg.CascadeLambda, qt.Equals, float32(0.5))
	c.Assert(cfg.LightPosition, qt.Equals, [3]float32{1, 2, 3})
}

func TestClampLambda(t *testing.T) {
	c := qt.New(t)

	c.Assert(clampLambda(-1), qt.Equals, float32(0.1))
	c.Assert(clampLambda(0), qt.Equals, float32(0.1))
	c.Assert(clampLambda(0.95), qt.Equals, float32(0.95))
	c.Assert(clampLambda(1.5), qt.Equals, float32(1))
}
