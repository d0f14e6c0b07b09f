package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Renderable is one surface that survived culling, ready to be drawn.
type Renderable struct {
	Node          NodeHandle
	Surface       Surface
	World         mgl32.Mat4
	MaterialIndex uint32
	Transparent   bool
}

// Collector accumulates renderables for one frame. Culling appends; emission reads
// through Drain, which leaves the collector empty with its capacity kept.
type Collector struct {
	items []Renderable
}

func NewCollector(capacity int) *Collector {
	return &Collector{items: make([]Renderable, 0, capacity)}
}

func (c *Collector) Append(r Renderable) {
	c.items = append(c.items, r)
}

func (c *Collector) Len() int { return len(c.items) }

// Items exposes the collected renderables in append order. The slice is only valid
// until the next Append or Drain.
func (c *Collector) Items() []Renderable { return c.items }

// Drain calls fn for each renderable in append order, then clears the collector.
// It stops early when fn returns an error; the collector is cleared either way.
func (c *Collector) Drain(fn func(r *Renderable) error) error {
	defer c.Reset()
	for i := range c.items {
		if err := fn(&c.items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) Reset() {
	clear(c.items)
	c.items = c.items[:0]
}
