package fast

import (
	"github.com/rvemu/rvemu/rvgo/bus"
	"github.com/rvemu/rvemu/rvgo/riscv"
)

// Status is the executor state after the last step.
type Status uint8

const (
	StatusFetch   Status = iota // ready to fetch the next instruction
	StatusHalted                // stopped on EBREAK
	StatusIllegal               // stopped on an unrecognized instruction
	StatusFaulted               // stopped on an address fault
)

func (s Status) String() string {
	switch s {
	case StatusFetch:
		return "fetch"
	case StatusHalted:
		return "halted"
	case StatusIllegal:
		return "illegal-instruction"
	case StatusFaulted:
		return "address-fault"
	default:
		return "unknown"
	}
}

// CSRBank holds the implemented control and status registers.
// Only mscratch exists; every CSR number is backed by it.
type CSRBank struct {
	MScratch U32
}

type Core struct {
	Registers [riscv.RegCount]U32
	PC        U32
	CSR       CSRBank

	// Instr is the last fetched instruction word.
	Instr U32

	Status Status

	// Steps counts retired instructions.
	Steps uint64

	// ResetVector is the PC after Reset. Zero unless an ELF entry point was loaded.
	ResetVector U32

	Bus *bus.Bus
}

func NewCore(b *bus.Bus) *Core {
	return &Core{Bus: b}
}

// Reset clears the logic state: registers, PC, the fetched instruction and the
// bus device caches. Memory contents and the CSR bank are preserved.
func (c *Core) Reset() {
	c.Registers = [riscv.RegCount]U32{}
	c.PC = c.ResetVector
	c.Instr = 0
	c.Status = StatusFetch
	c.Steps = 0
	c.Bus.ResetCache()
}

func (c *Core) ReadRegister(reg U32) U32 {
	return c.Registers[reg&0x1F]
}

// WriteRegister discards writes to x0.
func (c *Core) WriteRegister(reg U32, v U32) {
	reg &= 0x1F
	if reg == 0 {
		return
	}
	c.Registers[reg] = v
}

func (c *Core) ReadCSR(num U32) U32 {
	return c.CSR.MScratch
}

func (c *Core) WriteCSR(num U32, v U32) {
	c.CSR.MScratch = v
}

// updateCSR applies one of the read-modify-write CSR modes and returns the old value.
func (c *Core) updateCSR(num U32, v U32, mode U32) (out U32) {
	out = c.ReadCSR(num)
	switch mode {
	case 1: // ?01 = CSRRW(I)
	case 2: // ?10 = CSRRS(I)
		v = out | v
	case 3: // ?11 = CSRRC(I)
		v = out &^ v
	}
	c.WriteCSR(num, v)
	return
}
