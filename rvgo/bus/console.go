package bus

import (
	"bytes"
	"io"
)

const (
	ConsoleSize   = 0x100
	ConsoleTx     = 0x00 // write: emit the low byte
	ConsoleStatus = 0x04 // read: 1 when the transmitter is ready
)

// Console is a write-mostly character device. Output is collected per line and
// handed to the writer when a newline is seen or on Flush.
type Console struct {
	rng  Range
	out  io.Writer
	line bytes.Buffer
}

func NewConsole(start uint32, out io.Writer) *Console {
	return &Console{
		rng: Range{Start: start, Size: ConsoleSize},
		out: out,
	}
}

func (c *Console) Name() string { return "console" }
func (c *Console) Attr() Attr   { return ReadWrite }
func (c *Console) Range() Range { return c.rng }

func (c *Console) Read(addr uint32, dst []byte) error {
	if uint64(addr-c.rng.Start)+uint64(len(dst)) > uint64(c.rng.Size) {
		return ErrOutOfBounds
	}
	clear(dst)
	if addr-c.rng.Start == ConsoleStatus && len(dst) > 0 {
		dst[0] = 1
	}
	return nil
}

func (c *Console) Write(addr uint32, src []byte) error {
	if uint64(addr-c.rng.Start)+uint64(len(src)) > uint64(c.rng.Size) {
		return ErrOutOfBounds
	}
	if addr-c.rng.Start != ConsoleTx || len(src) == 0 {
		return nil
	}
	c.line.WriteByte(src[0])
	if src[0] == '\n' {
		return c.Flush()
	}
	return nil
}

// Flush writes out any pending partial line.
func (c *Console) Flush() error {
	if c.line.Len() == 0 {
		return nil
	}
	_, err := c.out.Write(c.line.Bytes())
	c.line.Reset()
	return err
}
