package fast

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"sort"

	"github.com/rvemu/rvemu/rvgo/bus"
)

// LoadELF writes the PT_LOAD segments of a 32-bit RISC-V ELF through the bus,
// at their physical (load) addresses, and makes the entry point the reset
// vector. It returns the loaded ranges.
func LoadELF(f *elf.File, c *Core) ([]bus.Range, error) {
	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("ELF is not 32-bit, but %s", f.Class)
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("ELF is not RISC-V, but got %q", f.Machine.String())
	}

	var loaded []bus.Range
	for i, prog := range f.Progs {
		// RISC-V attribute segments and friends have no memory image
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		if prog.Filesz > prog.Memsz {
			return nil, fmt.Errorf("invalid PT_LOAD program segment %d, file size (%d) > mem size (%d)", i, prog.Filesz, prog.Memsz)
		}
		if prog.Paddr+prog.Memsz > 1<<32 {
			return nil, fmt.Errorf("program segment %d at %x does not fit a 32-bit address space", i, prog.Paddr)
		}
		r := io.MultiReader(
			io.NewSectionReader(prog, 0, int64(prog.Filesz)),
			bytes.NewReader(make([]byte, prog.Memsz-prog.Filesz)),
		)
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read program segment %d: %w", i, err)
		}
		addr := uint32(prog.Paddr)
		if err := c.Bus.WriteBytes(addr, data); err != nil {
			return nil, fmt.Errorf("failed to load program segment %d: %w", i, err)
		}
		loaded = append(loaded, bus.Range{Start: addr, Size: uint32(prog.Memsz)})
	}
	c.ResetVector = uint32(f.Entry)
	return loaded, nil
}

type SortedSymbols []elf.Symbol

// FindSymbol finds the symbol that intersects with the given addr, or a
// placeholder if none exists.
func (s SortedSymbols) FindSymbol(addr U32) elf.Symbol {
	a := uint64(addr)
	// find first symbol with higher start. Or n if no such symbol exists
	i := sort.Search(len(s), func(i int) bool {
		return s[i].Value > a
	})
	if i == 0 {
		return elf.Symbol{Name: "!start", Value: 0}
	}
	out := &s[i-1]
	if out.Value+out.Size < a { // addr may be pointing to a gap between symbols
		return elf.Symbol{Name: "!gap", Value: a}
	}
	return *out
}

func Symbols(f *elf.File) (SortedSymbols, error) {
	symbols, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols data: %w", err)
	}
	out := make(SortedSymbols, 0, len(symbols))
	for _, sym := range symbols {
		if elf.ST_TYPE(sym.Info) == elf.STT_FUNC {
			out = append(out, sym)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Value < out[j].Value
	})
	return out, nil
}
