package handle

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidHandle = errors.New("invalid handle")
	ErrPoolFull      = errors.New("pool index space exhausted")
)

const (
	indexBits = 16
	indexMask = 1<<indexBits - 1

	// MaxEntries is the number of addressable slots per pool.
	MaxEntries = 1 << indexBits
)

// Handle identifies one live entry of a Pool[T]. The high 16 bits hold the slot
// metadata (generation), the low 16 bits the slot index. The zero Handle is the
// "none" sentinel and never resolves.
type Handle[T any] struct {
	raw uint32
}

func New[T any](index, metadata uint16) Handle[T] {
	return Handle[T]{raw: uint32(metadata)<<indexBits | uint32(index)}
}

// FromRaw rebuilds a handle from its packed representation.
func FromRaw[T any](raw uint32) Handle[T] {
	return Handle[T]{raw: raw}
}

func (h Handle[T]) Index() uint16    { return uint16(h.raw & indexMask) }
func (h Handle[T]) Metadata() uint16 { return uint16(h.raw >> indexBits) }
func (h Handle[T]) Raw() uint32      { return h.raw }
func (h Handle[T]) IsNil() bool      { return h.raw == 0 }

func (h Handle[T]) String() string {
	if h.IsNil() {
		return "handle(nil)"
	}
	return fmt.Sprintf("handle(%d@%d)", h.Index(), h.Metadata())
}

func invalid[T any](h Handle[T], reason string) error {
	var zero T
	return fmt.Errorf("%w: %T %s: %s", ErrInvalidHandle, zero, h, reason)
}
