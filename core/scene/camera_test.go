// Copyright (c) 2020 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package scene_test

import (
	"testing"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/mirage/core/scene"
)

func TestCameraUpdatedFlag(t *testing.T) {
	camera := scene.NewCamera(45, 16.0/9.0, 0.5, 48)
	if !camera.Updated() {
		t.Error("fresh camera should report an update")
	}
	if camera.Updated() {
		t.Error("updated flag should clear after a read")
	}
	camera.SetPosition(glm.Vec3{-0.12, 1.14, -2.25})
	if !camera.Updated() {
		t.Error("SetPosition should mark the view updated")
	}
	camera.Rotate(glm.Vec3{-1, 0, 0})
	if !camera.Updated() {
		t.Error("Rotate should mark the view updated")
	}
}

func TestCameraWalk(t *testing.T) {
	camera := scene.NewCamera(45, 16.0/9.0, 0.5, 48)
	camera.Walk(2, 0)
	pos := camera.Position()
	if pos.Z() != -2 || pos.X() != 0 {
		t.Errorf("walking forward at zero yaw moved to %v", pos)
	}
	camera.Walk(0, 1)
	pos = camera.Position()
	if pos.X() != 1 {
		t.Errorf("strafing right at zero yaw moved to %v", pos)
	}
}

func TestCameraMatrices(t *testing.T) {
	camera := scene.NewCamera(45, 16.0/9.0, 0.5, 48)
	camera.SetPosition(glm.Vec3{-0.12, 1.14, -2.25})
	camera.SetRotation(glm.Vec3{-17, 7, 0})

	view := camera.View()
	if view.Det() == 0 {
		t.Error("view matrix is singular")
	}
	proj := camera.Perspective()
	if proj[5] <= 0 {
		t.Errorf("perspective should keep OpenGL conventions before upload, got %f at [5]", proj[5])
	}
	if camera.Near() != 0.5 || camera.Far() != 48 {
		t.Errorf("clip planes lost: near %f far %f", camera.Near(), camera.Far())
	}
}
