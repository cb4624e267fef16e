package cmd

import (
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rvemu/rvemu/rvgo/bus"
	"github.com/rvemu/rvemu/rvgo/fast"
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

type MachineConfig struct {
	Flash bus.Range
	RAM   bus.Range

	Console     bool
	ConsoleBase uint32
	ConsoleOut  io.Writer
}

// Machine is a core wired to flash, RAM and optionally a console.
type Machine struct {
	Core    *fast.Core
	Flash   *bus.MemoryRegion
	RAM     *bus.MemoryRegion
	Console *bus.Console

	// Symbols is set when the image was an ELF with a symbol table.
	Symbols fast.SortedSymbols
}

func NewMachine(cfg MachineConfig) (*Machine, error) {
	flash, err := bus.NewMemoryRegion("flash", cfg.Flash.Start, cfg.Flash.Size, bus.ReadWrite)
	if err != nil {
		return nil, err
	}
	ram, err := bus.NewMemoryRegion("ram", cfg.RAM.Start, cfg.RAM.Size, bus.ReadWrite)
	if err != nil {
		return nil, err
	}
	b := bus.NewBus()
	b.Attach(flash)
	b.Attach(ram)
	m := &Machine{Flash: flash, RAM: ram}
	if cfg.Console {
		out := cfg.ConsoleOut
		if out == nil {
			out = io.Discard
		}
		m.Console = bus.NewConsole(cfg.ConsoleBase, out)
		b.Attach(m.Console)
	}
	m.Core = fast.NewCore(b)
	m.Core.ResetVector = cfg.Flash.Start
	return m, nil
}

// LoadImage loads an ELF executable through the bus, or a raw image at the
// start of flash, and resets the core.
func (m *Machine) LoadImage(data []byte) error {
	if bytes.HasPrefix(data, elfMagic) {
		f, err := elf.NewFile(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to parse ELF: %w", err)
		}
		if _, err := fast.LoadELF(f, m.Core); err != nil {
			return err
		}
		if syms, err := fast.Symbols(f); err == nil {
			m.Symbols = syms
		}
	} else if _, err := m.Flash.Load(bytes.NewReader(data)); err != nil {
		return err
	}
	m.Core.Reset()
	return nil
}

func (m *Machine) LoadImageFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("image %q: %w", path, bus.ErrEmptyImage)
	}
	if err := m.LoadImage(data); err != nil {
		return fmt.Errorf("failed to load image %q: %w", path, err)
	}
	return nil
}

// LookupSymbol names the function containing pc, if symbols were loaded.
func (m *Machine) LookupSymbol(pc uint32) string {
	if len(m.Symbols) == 0 {
		return "!unknown"
	}
	return m.Symbols.FindSymbol(pc).Name
}

// Close flushes any pending console output.
func (m *Machine) Close() error {
	if m.Console == nil {
		return nil
	}
	return m.Console.Flush()
}

var errNoImage = errors.New("no image given")
