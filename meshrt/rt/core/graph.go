package core

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
)

var ErrCycle = errors.New("node hierarchy cycle")

// Refresh recomputes world matrices depth-first from the scene roots:
// world = parent.world * local. A child is visited only after its parent's world
// matrix is assigned. Nodes without meshes are refreshed like any other. A listed
// root that has since gained a parent is reached through that parent instead.
func (r *Registry) Refresh(root mgl32.Mat4, scene *Scene) error {
	for _, h := range scene.Roots {
		n, err := r.Node(h)
		if err != nil {
			return err
		}
		if !n.Parent.IsNil() {
			continue
		}
		if err := r.refreshNode(h, root); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) refreshNode(h NodeHandle, parent mgl32.Mat4) error {
	n, err := r.Node(h)
	if err != nil {
		return err
	}
	n.World = parent.Mul4(n.Local)
	world := n.World
	// n may move if a child lookup ever grows the pool; copy what we iterate.
	children := n.Children
	for _, c := range children {
		if err := r.refreshNode(c, world); err != nil {
			return fmt.Errorf("child of %s: %w", h, err)
		}
	}
	return nil
}

// AttachChild reparents child under parent. It refuses to create a cycle. It does
// not touch any Scene.Roots list; use AttachInScene for nodes of a loaded scene.
func (r *Registry) AttachChild(parent, child NodeHandle) error {
	if parent == child {
		return fmt.Errorf("%w: %s onto itself", ErrCycle, child)
	}
	if _, err := r.Node(child); err != nil {
		return err
	}
	for cur := parent; !cur.IsNil(); {
		n, err := r.Node(cur)
		if err != nil {
			return err
		}
		if n.Parent == child {
			return fmt.Errorf("%w: %s is an ancestor of %s", ErrCycle, child, parent)
		}
		cur = n.Parent
	}

	if err := r.Detach(child); err != nil {
		return err
	}
	p, err := r.Node(parent)
	if err != nil {
		return err
	}
	p.Children = append(p.Children, child)
	c, _ := r.Node(child)
	c.Parent = parent
	return nil
}

// Detach removes child from its parent's child list, leaving it parentless. Use
// DetachInScene to keep the node refreshed as a root.
func (r *Registry) Detach(child NodeHandle) error {
	c, err := r.Node(child)
	if err != nil {
		return err
	}
	if c.Parent.IsNil() {
		return nil
	}
	p, err := r.Node(c.Parent)
	if err != nil {
		return err
	}
	for i, h := range p.Children {
		if h == child {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			break
		}
	}
	c.Parent = NodeHandle{}
	return nil
}

// AttachInScene reparents child under parent and drops child from scene.Roots.
func (r *Registry) AttachInScene(scene *Scene, parent, child NodeHandle) error {
	if err := r.AttachChild(parent, child); err != nil {
		return err
	}
	scene.Roots = slices.DeleteFunc(scene.Roots, func(h NodeHandle) bool { return h == child })
	return nil
}

// DetachInScene makes child a root of scene. Refresh then places it under the
// root matrix.
func (r *Registry) DetachInScene(scene *Scene, child NodeHandle) error {
	if err := r.Detach(child); err != nil {
		return err
	}
	if !slices.Contains(scene.Roots, child) {
		scene.Roots = append(scene.Roots, child)
	}
	return nil
}
