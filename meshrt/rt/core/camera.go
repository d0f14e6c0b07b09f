package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type Direction int

const (
	Forward Direction = iota
	Backward
	Left
	Right
	Up
	Down
)

const (
	// FarPlane bounds the projection; the frustum itself has no far plane.
	FarPlane = 1000.0

	minZoom  = 1.0
	maxZoom  = 45.0
	maxPitch = 89.0
)

var WorldUp = mgl32.Vec3{0, 1, 0}

// CameraState is a Y-up fly camera. Yaw and Pitch are in degrees; Zoom is the
// vertical field of view in degrees.
type CameraState struct {
	Position    mgl32.Vec3
	Yaw         float32
	Pitch       float32
	Speed       float32
	Sensitivity float32
	Zoom        float32
	Near        float32

	front mgl32.Vec3
	right mgl32.Vec3
	up    mgl32.Vec3
}

func NewCameraState() *CameraState {
	c := &CameraState{
		Position:    mgl32.Vec3{0, 1, 5},
		Yaw:         -90,
		Pitch:       0,
		Speed:       2.5,
		Sensitivity: 0.1,
		Zoom:        maxZoom,
		Near:        0.1,
	}
	c.UpdateVectors()
	return c
}

// UpdateVectors recomputes the basis from Yaw and Pitch. Call it after assigning
// either field directly.
func (c *CameraState) UpdateVectors() {
	yaw := float64(mgl32.DegToRad(c.Yaw))
	pitch := float64(mgl32.DegToRad(c.Pitch))
	c.front = mgl32.Vec3{
		float32(math.Cos(yaw) * math.Cos(pitch)),
		float32(math.Sin(pitch)),
		float32(math.Sin(yaw) * math.Cos(pitch)),
	}.Normalize()
	c.right = c.front.Cross(WorldUp).Normalize()
	c.up = c.right.Cross(c.front).Normalize()
}

func (c *CameraState) Front() mgl32.Vec3 { return c.front }
func (c *CameraState) Right() mgl32.Vec3 { return c.right }

func (c *CameraState) ProcessKeyboard(dir Direction, dt float32) {
	v := c.Speed * dt
	switch dir {
	case Forward:
		c.Position = c.Position.Add(c.front.Mul(v))
	case Backward:
		c.Position = c.Position.Sub(c.front.Mul(v))
	case Left:
		c.Position = c.Position.Sub(c.right.Mul(v))
	case Right:
		c.Position = c.Position.Add(c.right.Mul(v))
	case Up:
		c.Position = c.Position.Add(WorldUp.Mul(v))
	case Down:
		c.Position = c.Position.Sub(WorldUp.Mul(v))
	}
}

func (c *CameraState) ProcessMouse(dx, dy float32) {
	c.Yaw += dx * c.Sensitivity
	c.Pitch = mgl32.Clamp(c.Pitch+dy*c.Sensitivity, -maxPitch, maxPitch)
	c.UpdateVectors()
}

func (c *CameraState) ProcessScroll(dy float32) {
	c.Zoom = mgl32.Clamp(c.Zoom-dy, minZoom, maxZoom)
}

func (c *CameraState) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Position.Add(c.front), c.up)
}

// Projection uses the GL clip convention (z in -w..w). The mesh shader remaps
// depth to 0..1 for the device.
func (c *CameraState) Projection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.Zoom), aspect, c.Near, FarPlane)
}

func (c *CameraState) ViewProj(aspect float32) mgl32.Mat4 {
	return c.Projection(aspect).Mul4(c.View())
}

func (c *CameraState) Frustum(aspect float32) Frustum {
	return ComputeFrustum(c.ViewProj(aspect))
}
