package fast

import (
	"fmt"

	"github.com/rvemu/rvemu/rvgo/riscv"
)

// Format is the layout an instruction word is read through.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatR
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
)

func (f Format) String() string {
	switch f {
	case FormatR:
		return "R"
	case FormatI:
		return "I"
	case FormatS:
		return "S"
	case FormatB:
		return "B"
	case FormatU:
		return "U"
	case FormatJ:
		return "J"
	default:
		return "?"
	}
}

// Functions to parse the instruction field values from the different layouts.
// Immediates are returned sign-extended to 32 bits.

func parseImmTypeI(instr U32) U32 {
	return signExtend32(instr>>20, 11)
}

func parseImmTypeS(instr U32) U32 {
	return signExtend32((instr>>25)<<5|(instr>>7)&0x1F, 11)
}

func parseImmTypeB(instr U32) U32 {
	return signExtend32(
		((instr>>8)&0xF)<<1|
			((instr>>25)&0x3F)<<5|
			((instr>>7)&1)<<11|
			(instr>>31)<<12,
		12,
	)
}

func parseImmTypeU(instr U32) U32 {
	return instr & 0xFFFFF000
}

func parseImmTypeJ(instr U32) U32 {
	return signExtend32(
		((instr>>21)&0x3FF)<<1|
			((instr>>20)&1)<<11|
			((instr>>12)&0xFF)<<12|
			(instr>>31)<<20,
		20,
	)
}

func parseOpcode(instr U32) U32 { return instr & 0x7F }
func parseRd(instr U32) U32     { return (instr >> 7) & 0x1F }
func parseFunct3(instr U32) U32 { return (instr >> 12) & 0x7 }
func parseRs1(instr U32) U32    { return (instr >> 15) & 0x1F }
func parseRs2(instr U32) U32    { return (instr >> 20) & 0x1F }
func parseFunct7(instr U32) U32 { return instr >> 25 }

// Instr is a decoded instruction word. Fields that do not belong to the
// selected format are still extracted, and are ignored by the executor.
type Instr struct {
	Raw    U32
	Format Format
	Opcode U32
	Rd     U32
	Funct3 U32
	Rs1    U32
	Rs2    U32
	Funct7 U32
	Imm    U32
}

func formatOf(opcode U32) Format {
	switch opcode {
	case riscv.OpReg:
		return FormatR
	case riscv.OpLoad, riscv.OpImm, riscv.OpJALR, riscv.OpSystem, riscv.OpMiscMem:
		return FormatI
	case riscv.OpStore:
		return FormatS
	case riscv.OpBranch:
		return FormatB
	case riscv.OpLUI, riscv.OpAUIPC:
		return FormatU
	case riscv.OpJAL:
		return FormatJ
	default:
		return FormatUnknown
	}
}

// Decode is pure bit extraction; it never rejects a word.
func Decode(raw U32) Instr {
	in := Instr{
		Raw:    raw,
		Opcode: parseOpcode(raw),
		Rd:     parseRd(raw),
		Funct3: parseFunct3(raw),
		Rs1:    parseRs1(raw),
		Rs2:    parseRs2(raw),
		Funct7: parseFunct7(raw),
	}
	in.Format = formatOf(in.Opcode)
	switch in.Format {
	case FormatI:
		in.Imm = parseImmTypeI(raw)
	case FormatS:
		in.Imm = parseImmTypeS(raw)
	case FormatB:
		in.Imm = parseImmTypeB(raw)
	case FormatU:
		in.Imm = parseImmTypeU(raw)
	case FormatJ:
		in.Imm = parseImmTypeJ(raw)
	}
	return in
}

func (in Instr) String() string {
	return fmt.Sprintf("%08x (%s-type, opcode %02x)", in.Raw, in.Format, in.Opcode)
}
