// Package scene provides a retained 2D scene graph for the navigation overlay
// and an SVG renderer for it.
//
// Nodes live in screen space: the robot frame is converted with geom.ToScreen
// before it reaches a node. A node's scale is typically the inverse of the
// view zoom so markers keep a constant on-screen size.
//
// The scene graph is not safe for concurrent use. Mutate and render it from
// one goroutine.
package scene

import "slices"

// Transform is the placement and visibility shared by every node.
type Transform struct {
	X        float64
	Y        float64
	Rotation float64 // degrees, clockwise
	ScaleX   float64
	ScaleY   float64
	Visible  bool
}

// identity returns a visible transform with unit scale.
func identity() Transform {
	return Transform{ScaleX: 1, ScaleY: 1, Visible: true}
}

// SetScale applies a scale factor.
func (t *Transform) SetScale(s Scale) {
	t.ScaleX = s.X
	t.ScaleY = s.Y
}

// Node is anything that can be attached to a Container.
type Node interface {
	Base() *Transform
}

// Container groups child nodes under a shared transform.
type Container struct {
	Transform
	children []Node
}

// NewContainer returns an empty, visible container.
func NewContainer() *Container {
	return &Container{Transform: identity()}
}

// Base implements Node.
func (c *Container) Base() *Transform { return &c.Transform }

// Add appends a child. Adding a node that is already a child moves it to the top.
func (c *Container) Add(n Node) {
	c.Remove(n)
	c.children = append(c.children, n)
}

// Remove detaches a child. It reports whether the node was attached.
func (c *Container) Remove(n Node) bool {
	i := slices.Index(c.children, n)
	if i < 0 {
		return false
	}
	c.children = slices.Delete(c.children, i, i+1)
	return true
}

// Contains reports whether n is a direct child.
func (c *Container) Contains(n Node) bool {
	return slices.Contains(c.children, n)
}

// Children returns the direct children in paint order.
func (c *Container) Children() []Node {
	return slices.Clone(c.children)
}

// Len returns the number of direct children.
func (c *Container) Len() int {
	return len(c.children)
}
