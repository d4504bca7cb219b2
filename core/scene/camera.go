// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package scene holds the camera state the renderer consumes every
// frame. The event loop mutates it, the draw loop reads it, so all
// accessors lock.
package scene

import (
	"sync"

	glm "github.com/go-gl/mathgl/mgl32"
)

// Camera is a first person camera. The zero value is not usable,
// construct with NewCamera.
type Camera struct {
	mu sync.Mutex

	position glm.Vec3
	rotation glm.Vec3

	fov    float32
	aspect float32
	near   float32
	far    float32

	updated bool
}

// NewCamera returns a camera with the given vertical field of view in
// degrees and projection parameters.
func NewCamera(fov, aspect, near, far float32) *Camera {
	return &Camera{
		fov:     fov,
		aspect:  aspect,
		near:    near,
		far:     far,
		updated: true,
	}
}

// SetPosition places the camera. Marks the view updated.
func (c *Camera) SetPosition(position glm.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = position
	c.updated = true
}

// Position returns the current camera position.
func (c *Camera) Position() glm.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// SetRotation sets the camera euler angles in degrees. Marks the
// view updated.
func (c *Camera) SetRotation(rotation glm.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotation = rotation
	c.updated = true
}

// Rotation returns the camera euler angles in degrees.
func (c *Camera) Rotation() glm.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rotation
}

// Rotate adds to the camera euler angles in degrees.
func (c *Camera) Rotate(delta glm.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotation = c.rotation.Add(delta)
	c.updated = true
}

// Walk moves the camera relative to its heading, units forward and
// right along the horizontal plane.
func (c *Camera) Walk(forward, right float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	yaw := glm.DegToRad(c.rotation.Y())
	heading := glm.Rotate3DY(yaw).Mul3x1(glm.Vec3{0, 0, -1})
	strafe := glm.Rotate3DY(yaw).Mul3x1(glm.Vec3{1, 0, 0})
	c.position = c.position.Add(heading.Mul(forward)).Add(strafe.Mul(right))
	c.updated = true
}

// SetAspect changes the projection aspect ratio, usually after a
// window resize.
func (c *Camera) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updated = true
}

// View builds the view matrix from the current rotation and position.
func (c *Camera) View() glm.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	rot := glm.HomogRotate3DX(glm.DegToRad(c.rotation.X())).
		Mul4(glm.HomogRotate3DY(glm.DegToRad(c.rotation.Y()))).
		Mul4(glm.HomogRotate3DZ(glm.DegToRad(c.rotation.Z())))
	return rot.Mul4(glm.Translate3D(c.position.X(), c.position.Y(), c.position.Z()))
}

// Perspective builds the projection matrix. OpenGL clip conventions,
// the renderer flips for Vulkan when it uploads uniforms.
func (c *Camera) Perspective() glm.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return glm.Perspective(glm.DegToRad(c.fov), c.aspect, c.near, c.far)
}

// Near returns the near clip distance.
func (c *Camera) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

// Far returns the far clip distance.
func (c *Camera) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

// Updated reports whether the view changed since the last call and
// resets the flag.
func (c *Camera) Updated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	updated := c.updated
	c.updated = false
	return updated
}
