package app

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Profiler times the loop's CPU phases (load, update, frame, record) and holds
// the renderer's per-frame counters. Loop.Frame resets it at the start of every
// frame, so Report always describes the last frame.
type Profiler struct {
	Scopes     map[string]time.Duration
	StartTimes map[string]time.Time
	Counts     map[string]int
	// Order lists scopes by first use; it survives Reset so the report keeps a
	// stable layout across frames.
	Order []string

	now func() time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		Scopes:     map[string]time.Duration{},
		StartTimes: map[string]time.Time{},
		Counts:     map[string]int{},
		now:        time.Now,
	}
}

func (p *Profiler) BeginScope(name string) {
	if !slices.Contains(p.Order, name) {
		p.Order = append(p.Order, name)
	}
	p.StartTimes[name] = p.now()
}

// EndScope records the time since BeginScope. An unopened scope is ignored.
func (p *Profiler) EndScope(name string) {
	start, ok := p.StartTimes[name]
	if !ok {
		return
	}
	delete(p.StartTimes, name)
	p.Scopes[name] = p.now().Sub(start)
}

// Scope opens name and returns its closer: defer p.Scope("record")().
func (p *Profiler) Scope(name string) func() {
	p.BeginScope(name)
	return func() { p.EndScope(name) }
}

func (p *Profiler) SetCount(name string, count int) {
	p.Counts[name] = count
}

// Reset zeroes the timings and keeps the scope order.
func (p *Profiler) Reset() {
	for name := range p.Scopes {
		p.Scopes[name] = 0
	}
}

// Report renders the timings in scope order followed by the counters sorted by
// name. App logs it once a second in debug mode.
func (p *Profiler) Report() string {
	var sb strings.Builder
	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.Order {
		fmt.Fprintf(&sb, "  %-15s: %.2f ms\n", name, float64(p.Scopes[name].Microseconds())/1000)
	}
	sb.WriteString("\nStats:\n")
	for _, name := range slices.Sorted(maps.Keys(p.Counts)) {
		fmt.Fprintf(&sb, "  %-15s: %d\n", name, p.Counts[name])
	}
	return sb.String()
}
