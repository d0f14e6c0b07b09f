package core

import (
	"testing"

	"github.com/gekko3d/scenert/meshrt/rt/handle"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addNode(t *testing.T, reg *Registry, name string, local mgl32.Mat4) NodeHandle {
	t.Helper()
	h, err := reg.Nodes.Add(NewNode(name, local))
	require.NoError(t, err)
	return h
}

func chain(t *testing.T, reg *Registry) (a, b, c NodeHandle) {
	t.Helper()
	a = addNode(t, reg, "a", mgl32.Translate3D(1, 0, 0))
	b = addNode(t, reg, "b", mgl32.Translate3D(0, 2, 0))
	c = addNode(t, reg, "c", mgl32.Translate3D(0, 0, 3))
	require.NoError(t, reg.AttachChild(a, b))
	require.NoError(t, reg.AttachChild(b, c))
	return a, b, c
}

func TestRefreshComposesParentBeforeChild(t *testing.T) {
	reg := NewRegistry()
	a, b, c := chain(t, reg)
	scene := &Scene{Nodes: []NodeHandle{a, b, c}, Roots: []NodeHandle{a}}

	require.NoError(t, reg.Refresh(mgl32.Ident4(), scene))

	for _, tc := range []struct {
		h    NodeHandle
		want mgl32.Vec3
	}{
		{a, mgl32.Vec3{1, 0, 0}},
		{b, mgl32.Vec3{1, 2, 0}},
		{c, mgl32.Vec3{1, 2, 3}},
	} {
		n, err := reg.Node(tc.h)
		require.NoError(t, err)
		assert.True(t, n.World.Col(3).Vec3().ApproxEqual(tc.want), "%s: got %v", n.Name, n.World.Col(3))
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	a, _, c := chain(t, reg)
	scene := &Scene{Roots: []NodeHandle{a}}
	root := mgl32.Translate3D(10, 0, 0)

	require.NoError(t, reg.Refresh(root, scene))
	first, _ := reg.Node(c)
	once := first.World

	require.NoError(t, reg.Refresh(root, scene))
	second, _ := reg.Node(c)
	assert.Equal(t, once, second.World)
	assert.True(t, second.World.Col(3).Vec3().ApproxEqual(mgl32.Vec3{11, 2, 3}))
}

func TestRefreshStaleChild(t *testing.T) {
	reg := NewRegistry()
	a, b, c := chain(t, reg)
	require.NoError(t, reg.Nodes.Remove(c))

	err := reg.Refresh(mgl32.Ident4(), &Scene{Roots: []NodeHandle{a}})
	require.ErrorIs(t, err, handle.ErrInvalidHandle)

	n, _ := reg.Node(b)
	assert.Len(t, n.Children, 1, "refresh does not prune")
}

func TestAttachChildRejectsCycle(t *testing.T) {
	reg := NewRegistry()
	a, b, c := chain(t, reg)

	assert.ErrorIs(t, reg.AttachChild(c, a), ErrCycle)
	assert.ErrorIs(t, reg.AttachChild(b, b), ErrCycle)

	n, _ := reg.Node(a)
	assert.True(t, n.Parent.IsNil(), "failed attach leaves the graph unchanged")
}

func TestAttachChildReparents(t *testing.T) {
	reg := NewRegistry()
	a, b, c := chain(t, reg)

	require.NoError(t, reg.AttachChild(a, c))

	na, _ := reg.Node(a)
	nb, _ := reg.Node(b)
	nc, _ := reg.Node(c)
	assert.Equal(t, []NodeHandle{b, c}, na.Children)
	assert.Empty(t, nb.Children)
	assert.Equal(t, a, nc.Parent)

	require.NoError(t, reg.Detach(c))
	nc, _ = reg.Node(c)
	assert.True(t, nc.Parent.IsNil())
	na, _ = reg.Node(a)
	assert.Equal(t, []NodeHandle{b}, na.Children)
}

func TestTransformMatrixInverse(t *testing.T) {
	tr := NewTransform()
	tr.Position = mgl32.Vec3{1, 2, 3}
	tr.Rotation = mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 1, 0})
	tr.Scale = mgl32.Vec3{2, 2, 2}

	id := tr.Matrix().Mul4(tr.Inverse())
	assert.True(t, id.ApproxEqualThreshold(mgl32.Ident4(), 1e-5))
}

func TestTransformSetEuler(t *testing.T) {
	tr := NewTransform()
	tr.SetEuler(mgl32.Vec3{0, 90, 0})

	x := tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1}).Vec3()
	assert.True(t, x.ApproxEqualThreshold(mgl32.Vec3{0, 0, -1}, 1e-5), "got %v", x)
}

func worldPos(t *testing.T, reg *Registry, h NodeHandle) mgl32.Vec3 {
	t.Helper()
	n, err := reg.Node(h)
	require.NoError(t, err)
	return n.World.Col(3).Vec3()
}

func TestRefreshAfterSceneEdits(t *testing.T) {
	reg := NewRegistry()
	a := addNode(t, reg, "a", mgl32.Translate3D(10, 0, 0))
	x := addNode(t, reg, "x", mgl32.Translate3D(0, 1, 0))
	scene := &Scene{Nodes: []NodeHandle{a, x}, Roots: []NodeHandle{a, x}}

	require.NoError(t, reg.AttachInScene(scene, a, x))
	assert.Equal(t, []NodeHandle{a}, scene.Roots)
	require.NoError(t, reg.Refresh(mgl32.Ident4(), scene))
	assert.True(t, worldPos(t, reg, x).ApproxEqual(mgl32.Vec3{10, 1, 0}), "got %v", worldPos(t, reg, x))

	require.NoError(t, reg.DetachInScene(scene, x))
	assert.Equal(t, []NodeHandle{a, x}, scene.Roots)
	n, _ := reg.Node(x)
	n.Local = mgl32.Translate3D(0, 5, 0)
	require.NoError(t, reg.Refresh(mgl32.Ident4(), scene))
	assert.True(t, worldPos(t, reg, x).ApproxEqual(mgl32.Vec3{0, 5, 0}), "got %v", worldPos(t, reg, x))
}

func TestRefreshSkipsParentedRoots(t *testing.T) {
	reg := NewRegistry()
	a := addNode(t, reg, "a", mgl32.Translate3D(10, 0, 0))
	x := addNode(t, reg, "x", mgl32.Translate3D(0, 1, 0))
	scene := &Scene{Roots: []NodeHandle{a, x}}

	// Plain AttachChild leaves x listed as a root.
	require.NoError(t, reg.AttachChild(a, x))
	require.NoError(t, reg.Refresh(mgl32.Ident4(), scene))
	assert.True(t, worldPos(t, reg, x).ApproxEqual(mgl32.Vec3{10, 1, 0}), "got %v", worldPos(t, reg, x))
}
