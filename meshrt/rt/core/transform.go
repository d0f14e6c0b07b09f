package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Transform is a node's local placement in parent space, composed as T * R * S.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

func NewTransform() *Transform {
	return &Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// SetEuler sets Rotation from angles in degrees about X, Y and Z, applied yaw
// first, then pitch, then roll.
func (t *Transform) SetEuler(deg mgl32.Vec3) {
	t.Rotation = mgl32.AnglesToQuat(
		mgl32.DegToRad(deg.Y()), mgl32.DegToRad(deg.X()), mgl32.DegToRad(deg.Z()), mgl32.YXZ)
}

// Matrix is the local matrix stored in Node.Local.
func (t *Transform) Matrix() mgl32.Mat4 {
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Normalize().Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())
	return translate.Mul4(rotate).Mul4(scale)
}

// Inverse maps parent space back into the node's space. Scale must be non-zero.
func (t *Transform) Inverse() mgl32.Mat4 {
	invScale := mgl32.Scale3D(1/t.Scale.X(), 1/t.Scale.Y(), 1/t.Scale.Z())
	invRotate := t.Rotation.Normalize().Conjugate().Mat4()
	invTranslate := mgl32.Translate3D(-t.Position.X(), -t.Position.Y(), -t.Position.Z())
	return invScale.Mul4(invRotate).Mul4(invTranslate)
}
