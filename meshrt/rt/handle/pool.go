package handle

// Pool is a dense array of T with a parallel metadata array. Slots freed by Remove
// get their metadata bumped and are reused by later Add calls, so handles issued
// before the removal no longer resolve.
//
// Pointers returned by Get are only valid until the next Add: growth reallocates
// the backing array. Re-resolve handles after mutating the pool.
type Pool[T any] struct {
	items []T
	meta  []uint16
	live  []bool
	free  []uint16
	count int
}

func NewPool[T any](capacity int) *Pool[T] {
	return &Pool[T]{
		items: make([]T, 0, capacity),
		meta:  make([]uint16, 0, capacity),
		live:  make([]bool, 0, capacity),
	}
}

// Add stores v and returns its handle. A fresh slot is stamped with the live
// entry count plus one, skipping 0, so the zero Handle never resolves. A
// recycled slot keeps the stamp Remove bumped it to.
func (p *Pool[T]) Add(v T) (Handle[T], error) {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		p.items[idx] = v
		p.live[idx] = true
		p.count++
		return New[T](idx, p.meta[idx]), nil
	}

	if len(p.items) >= MaxEntries {
		return Handle[T]{}, ErrPoolFull
	}
	idx := uint16(len(p.items))
	stamp := nextStamp(uint16(p.count))
	p.items = append(p.items, v)
	p.meta = append(p.meta, stamp)
	p.live = append(p.live, true)
	p.count++
	return New[T](idx, stamp), nil
}

// nextStamp never yields 0 so the zero Handle stays unresolvable.
func nextStamp(m uint16) uint16 {
	m++
	if m == 0 {
		m = 1
	}
	return m
}

func (p *Pool[T]) check(h Handle[T]) error {
	idx := int(h.Index())
	switch {
	case idx >= len(p.items):
		return invalid(h, "index out of range")
	case p.meta[idx] != h.Metadata():
		return invalid(h, "metadata mismatch")
	case !p.live[idx]:
		return invalid(h, "slot is free")
	}
	return nil
}

func (p *Pool[T]) Valid(h Handle[T]) bool {
	return p.check(h) == nil
}

func (p *Pool[T]) Get(h Handle[T]) (*T, error) {
	if err := p.check(h); err != nil {
		return nil, err
	}
	return &p.items[h.Index()], nil
}

func (p *Pool[T]) Value(h Handle[T]) (T, error) {
	var zero T
	if err := p.check(h); err != nil {
		return zero, err
	}
	return p.items[h.Index()], nil
}

func (p *Pool[T]) Set(h Handle[T], v T) error {
	if err := p.check(h); err != nil {
		return err
	}
	p.items[h.Index()] = v
	return nil
}

// Remove frees the slot behind h. The slot metadata is bumped so every copy of h
// becomes stale.
func (p *Pool[T]) Remove(h Handle[T]) error {
	if err := p.check(h); err != nil {
		return err
	}
	idx := h.Index()
	var zero T
	p.items[idx] = zero
	p.meta[idx] = nextStamp(p.meta[idx])
	p.live[idx] = false
	p.free = append(p.free, idx)
	p.count--
	return nil
}

// Len is the number of slots, live or free. GPU mirrors are sized by Len.
func (p *Pool[T]) Len() int { return len(p.items) }

// Count is the number of live entries.
func (p *Pool[T]) Count() int { return p.count }

// HandleAt returns the handle of the live entry at index.
func (p *Pool[T]) HandleAt(index int) (Handle[T], bool) {
	if index < 0 || index >= len(p.items) || !p.live[index] {
		return Handle[T]{}, false
	}
	return New[T](uint16(index), p.meta[index]), true
}

// Each visits live entries in index order until fn returns false.
func (p *Pool[T]) Each(fn func(h Handle[T], v *T) bool) {
	for i := range p.items {
		if !p.live[i] {
			continue
		}
		if !fn(New[T](uint16(i), p.meta[i]), &p.items[i]) {
			return
		}
	}
}
