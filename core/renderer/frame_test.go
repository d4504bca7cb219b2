// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package renderer

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	glm "github.com/go-gl/mathgl/mgl32"
)

func TestPushConstantForDisplay(t *testing.T) {
	c := qt.New(t)

	push := pushConstantFor(drawModeDisplay)
	c.Assert(push.Scale, qt.Equals, glm.Ident4())
	c.Assert(push.ClipPlane, qt.Equals, glm.Vec4{})
	c.Assert(push.Shadows, qt.Equals, uint32(1))
}

func TestPushConstantForRefract(t *testing.T) {
	c := qt.New(t)

	push := pushConstantFor(drawModeRefract)
	c.Assert(push.Scale, qt.Equals, glm.Ident4())
	c.Assert(push.ClipPlane, qt.Equals, glm.Vec4{0, 1, 0, 0})
	c.Assert(push.Shadows, qt.Equals, uint32(0))
}

func TestPushConstantForReflect(t *testing.T) {
	c := qt.New(t)

	push := pushConstantFor(drawModeReflect)
	c.Assert(push.Scale, qt.Equals, glm.Scale3D(1, -1, 1))
	c.Assert(push.ClipPlane, qt.Equals, glm.Vec4{0, 1, 0, 0})
	c.Assert(push.Shadows, qt.Equals, uint32(0))
}

// The cascadeDebug pipeline layout exposes its push-constant range
// to the vertex stage only, so the fragment shader must not declare
// the block and instead receives the cascade index as a varying.
func TestCascadePreviewShaderStages(t *testing.T) {
	c := qt.New(t)

	src := filepath.Join("..", "..", "res", "shaders", "src")

	frag, err := ioutil.ReadFile(filepath.Join(src, "debug_csm.frag"))
	c.Assert(err, qt.IsNil)
	c.Assert(strings.Contains(string(frag), "push_constant"), qt.Equals, false)
	c.Assert(strings.Contains(string(frag), "flat in uint inCascadeIndex"), qt.Equals, true)

	vert, err := ioutil.ReadFile(filepath.Join(src, "debug_csm.vert"))
	c.Assert(err, qt.IsNil)
	c.Assert(strings.Contains(string(vert), "push_constant"), qt.Equals, true)
	c.Assert(strings.Contains(string(vert), "flat out uint outCascadeIndex"), qt.Equals, true)
}

func TestDebugQuadCount(t *testing.T) {
	c := qt.New(t)

	c.Assert(debugQuadCount(debugToggles{}), qt.Equals, 0)
	c.Assert(debugQuadCount(debugToggles{reflection: true}), qt.Equals, 1)
	c.Assert(debugQuadCount(debugToggles{reflection: true, refraction: true}), qt.Equals, 2)
	c.Assert(debugQuadCount(debugToggles{reflection: true, refraction: true, cascades: true}), qt.Equals, 3)
}
