package bus

import (
	"errors"
	"fmt"
	"io"
)

var ErrEmptyImage = errors.New("image is empty")

// MemoryRegion is a Device backed by a contiguous byte buffer.
type MemoryRegion struct {
	name string
	attr Attr
	rng  Range
	data []byte
}

func NewMemoryRegion(name string, start, size uint32, attr Attr) (*MemoryRegion, error) {
	if size == 0 {
		return nil, fmt.Errorf("memory region %q: size must not be zero", name)
	}
	return &MemoryRegion{
		name: name,
		attr: attr,
		rng:  Range{Start: start, Size: size},
		data: make([]byte, size),
	}, nil
}

func (m *MemoryRegion) Name() string { return m.name }
func (m *MemoryRegion) Attr() Attr   { return m.attr }
func (m *MemoryRegion) Range() Range { return m.rng }

// Bytes exposes the backing buffer. Offset 0 is the start address.
func (m *MemoryRegion) Bytes() []byte {
	return m.data
}

func (m *MemoryRegion) span(addr uint32, n int) ([]byte, error) {
	off := uint64(addr - m.rng.Start)
	if !m.rng.Contains(addr) || off+uint64(n) > uint64(len(m.data)) {
		return nil, ErrOutOfBounds
	}
	return m.data[off : off+uint64(n)], nil
}

func (m *MemoryRegion) Read(addr uint32, dst []byte) error {
	src, err := m.span(addr, len(dst))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

func (m *MemoryRegion) Write(addr uint32, src []byte) error {
	dst, err := m.span(addr, len(src))
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

// Load copies a raw, headerless image to the start of the region.
// The region is left untouched if the image is empty or does not fit.
func (m *MemoryRegion) Load(r io.Reader) (int, error) {
	img, err := io.ReadAll(io.LimitReader(r, int64(len(m.data))+1))
	if err != nil {
		return 0, fmt.Errorf("failed to read image: %w", err)
	}
	if len(img) == 0 {
		return 0, ErrEmptyImage
	}
	if len(img) > len(m.data) {
		return 0, fmt.Errorf("image does not fit in %s (%d bytes)", m.name, len(m.data))
	}
	return copy(m.data, img), nil
}
