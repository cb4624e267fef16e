package bus

import (
	"errors"
	"fmt"
	"strings"
)

// Attr holds the access capabilities of a device.
type Attr uint8

const (
	Readable Attr = 1 << iota
	Writable

	ReadWrite = Readable | Writable
)

func (a Attr) String() string {
	var sb strings.Builder
	if a&Readable != 0 {
		sb.WriteByte('r')
	} else {
		sb.WriteByte('-')
	}
	if a&Writable != 0 {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('-')
	}
	return sb.String()
}

// Range is the half-open address range [Start, Start+Size).
// The size is kept instead of the end address, so that ranges reaching the top
// of the 32-bit address space do not wrap.
type Range struct {
	Start uint32
	Size  uint32
}

func (r Range) Contains(addr uint32) bool {
	return addr-r.Start < r.Size
}

// End is the first address past the range.
func (r Range) End() uint64 {
	return uint64(r.Start) + uint64(r.Size)
}

func (r Range) String() string {
	return fmt.Sprintf("[%08x, %09x)", r.Start, r.End())
}

// Device is a memory-mapped unit attached to the Bus.
// The width of an access is the length of the given buffer.
type Device interface {
	Name() string
	Attr() Attr
	Range() Range
	Read(addr uint32, dst []byte) error
	Write(addr uint32, src []byte) error
}

var (
	ErrUnmapped    = errors.New("address not mapped")
	ErrNotReadable = errors.New("device is not readable")
	ErrNotWritable = errors.New("device is not writable")
	ErrOutOfBounds = errors.New("access exceeds device range")
	ErrBadWidth    = errors.New("unsupported access width")
)

// Fault is an address fault: an access that could not be routed, or that the
// target device rejected. It never has a partial effect.
type Fault struct {
	Op     string // "read" or "write"
	Addr   uint32
	Width  int
	Device string // empty if no device matched
	Err    error
}

func (f *Fault) Error() string {
	if f.Device == "" {
		return fmt.Sprintf("%s of %d bytes at %08x: %v", f.Op, f.Width, f.Addr, f.Err)
	}
	return fmt.Sprintf("%s of %d bytes at %08x (%s): %v", f.Op, f.Width, f.Addr, f.Device, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
