package bus

import (
	"encoding/binary"
)

const noDevice = -1

// Bus routes accesses to the attached devices.
//
// Devices are searched in attach order and the first one containing the
// address wins; overlapping ranges are not rejected. The last device hit by a
// read and by a write are remembered separately, since instruction fetches and
// data accesses usually stay within one device each.
type Bus struct {
	devices []Device

	lastRead  int
	lastWrite int
}

func NewBus() *Bus {
	return &Bus{
		lastRead:  noDevice,
		lastWrite: noDevice,
	}
}

func (b *Bus) Attach(dev Device) {
	b.devices = append(b.devices, dev)
}

func (b *Bus) Devices() []Device {
	return b.devices
}

// ResetCache forgets the last read and write devices.
func (b *Bus) ResetCache() {
	b.lastRead = noDevice
	b.lastWrite = noDevice
}

// LastRead returns the cached read device, or nil.
func (b *Bus) LastRead() Device {
	if b.lastRead == noDevice {
		return nil
	}
	return b.devices[b.lastRead]
}

// LastWrite returns the cached write device, or nil.
func (b *Bus) LastWrite() Device {
	if b.lastWrite == noDevice {
		return nil
	}
	return b.devices[b.lastWrite]
}

// Find returns the first device containing addr, without touching the caches.
func (b *Bus) Find(addr uint32) (Device, bool) {
	if i := b.scan(addr); i != noDevice {
		return b.devices[i], true
	}
	return nil, false
}

func (b *Bus) scan(addr uint32) int {
	for i, dev := range b.devices {
		if dev.Range().Contains(addr) {
			return i
		}
	}
	return noDevice
}

// route resolves addr through the given cache slot, and checks the capability
// needed for the access.
func (b *Bus) route(op string, addr uint32, width int, cache *int, need Attr) (Device, error) {
	i := *cache
	if i == noDevice || !b.devices[i].Range().Contains(addr) {
		i = b.scan(addr)
		if i == noDevice {
			return nil, &Fault{Op: op, Addr: addr, Width: width, Err: ErrUnmapped}
		}
		*cache = i
	}
	dev := b.devices[i]
	if dev.Attr()&need == 0 {
		err := ErrNotReadable
		if need == Writable {
			err = ErrNotWritable
		}
		return nil, &Fault{Op: op, Addr: addr, Width: width, Device: dev.Name(), Err: err}
	}
	return dev, nil
}

func (b *Bus) Read(addr uint32, dst []byte) error {
	dev, err := b.route("read", addr, len(dst), &b.lastRead, Readable)
	if err != nil {
		return err
	}
	if err := dev.Read(addr, dst); err != nil {
		return &Fault{Op: "read", Addr: addr, Width: len(dst), Device: dev.Name(), Err: err}
	}
	return nil
}

func (b *Bus) Write(addr uint32, src []byte) error {
	dev, err := b.route("write", addr, len(src), &b.lastWrite, Writable)
	if err != nil {
		return err
	}
	if err := dev.Write(addr, src); err != nil {
		return &Fault{Op: "write", Addr: addr, Width: len(src), Device: dev.Name(), Err: err}
	}
	return nil
}

func validWidth(size int) bool {
	return size == 1 || size == 2 || size == 4
}

// Load reads a little-endian value of 1, 2 or 4 bytes, zero-extended.
func (b *Bus) Load(addr uint32, size int) (uint32, error) {
	if !validWidth(size) {
		return 0, &Fault{Op: "read", Addr: addr, Width: size, Err: ErrBadWidth}
	}
	var buf [4]byte
	if err := b.Read(addr, buf[:size]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// Store writes the low size bytes of v, little-endian.
func (b *Bus) Store(addr uint32, size int, v uint32) error {
	if !validWidth(size) {
		return &Fault{Op: "write", Addr: addr, Width: size, Err: ErrBadWidth}
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return b.Write(addr, buf[:size])
}

// chunks splits [addr, addr+n) at device boundaries.
func (b *Bus) chunks(op string, addr uint32, n int, cache *int, need Attr, fn func(dev Device, a uint32, off, l int) error) error {
	for off := 0; off < n; {
		a := addr + uint32(off)
		dev, err := b.route(op, a, n-off, cache, need)
		if err != nil {
			return err
		}
		l := n - off
		if rem := dev.Range().End() - uint64(a); uint64(l) > rem {
			l = int(rem)
		}
		if err := fn(dev, a, off, l); err != nil {
			return err
		}
		off += l
	}
	return nil
}

// ReadBytes reads n bytes which may span several devices.
func (b *Bus) ReadBytes(addr uint32, n int) ([]byte, error) {
	out := make([]byte, n)
	err := b.chunks("read", addr, n, &b.lastRead, Readable, func(dev Device, a uint32, off, l int) error {
		if err := dev.Read(a, out[off:off+l]); err != nil {
			return &Fault{Op: "read", Addr: a, Width: l, Device: dev.Name(), Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WriteBytes writes data which may span several devices. The whole span is
// checked before anything is written.
func (b *Bus) WriteBytes(addr uint32, data []byte) error {
	noop := func(Device, uint32, int, int) error { return nil }
	if err := b.chunks("write", addr, len(data), &b.lastWrite, Writable, noop); err != nil {
		return err
	}
	return b.chunks("write", addr, len(data), &b.lastWrite, Writable, func(dev Device, a uint32, off, l int) error {
		if err := dev.Write(a, data[off:off+l]); err != nil {
			return &Fault{Op: "write", Addr: a, Width: l, Device: dev.Name(), Err: err}
		}
		return nil
	})
}
