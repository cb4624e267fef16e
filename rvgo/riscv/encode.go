package riscv

import "encoding/binary"

// Instruction encoders, used to build test programs.

func EncodeR(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return funct7<<25 | (rs2&0x1F)<<20 | (rs1&0x1F)<<15 | (funct3&7)<<12 | (rd&0x1F)<<7 | opcode&0x7F
}

func EncodeI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return uint32(imm&0xFFF)<<20 | (rs1&0x1F)<<15 | (funct3&7)<<12 | (rd&0x1F)<<7 | opcode&0x7F
}

func EncodeS(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm & 0xFFF)
	return (u>>5)<<25 | (rs2&0x1F)<<20 | (rs1&0x1F)<<15 | (funct3&7)<<12 | (u&0x1F)<<7 | opcode&0x7F
}

func EncodeB(opcode, funct3, rs1, rs2 uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>12)&1)<<31 | ((u>>5)&0x3F)<<25 | (rs2&0x1F)<<20 | (rs1&0x1F)<<15 |
		(funct3&7)<<12 | ((u>>1)&0xF)<<8 | ((u>>11)&1)<<7 | opcode&0x7F
}

func EncodeU(opcode, rd, imm uint32) uint32 {
	return imm&0xFFFFF000 | (rd&0x1F)<<7 | opcode&0x7F
}

func EncodeJ(opcode, rd uint32, imm int32) uint32 {
	u := uint32(imm)
	return ((u>>20)&1)<<31 | ((u>>1)&0x3FF)<<21 | ((u>>11)&1)<<20 | ((u>>12)&0xFF)<<12 |
		(rd&0x1F)<<7 | opcode&0x7F
}

func ADDI(rd, rs1 uint32, imm int32) uint32  { return EncodeI(OpImm, rd, Funct3ADD, rs1, imm) }
func SLTI(rd, rs1 uint32, imm int32) uint32  { return EncodeI(OpImm, rd, Funct3SLT, rs1, imm) }
func SLTIU(rd, rs1 uint32, imm int32) uint32 { return EncodeI(OpImm, rd, Funct3SLTU, rs1, imm) }
func XORI(rd, rs1 uint32, imm int32) uint32  { return EncodeI(OpImm, rd, Funct3XOR, rs1, imm) }
func ORI(rd, rs1 uint32, imm int32) uint32   { return EncodeI(OpImm, rd, Funct3OR, rs1, imm) }
func ANDI(rd, rs1 uint32, imm int32) uint32  { return EncodeI(OpImm, rd, Funct3AND, rs1, imm) }

func SLLI(rd, rs1, shamt uint32) uint32 {
	return EncodeI(OpImm, rd, Funct3SLL, rs1, int32(shamt&0x1F))
}

func SRLI(rd, rs1, shamt uint32) uint32 {
	return EncodeI(OpImm, rd, Funct3SR, rs1, int32(shamt&0x1F))
}

func SRAI(rd, rs1, shamt uint32) uint32 {
	return EncodeI(OpImm, rd, Funct3SR, rs1, int32(Funct7Alt<<5|shamt&0x1F))
}

func ADD(rd, rs1, rs2 uint32) uint32  { return EncodeR(OpReg, rd, Funct3ADD, rs1, rs2, Funct7Base) }
func SUB(rd, rs1, rs2 uint32) uint32  { return EncodeR(OpReg, rd, Funct3ADD, rs1, rs2, Funct7Alt) }
func SLL(rd, rs1, rs2 uint32) uint32  { return EncodeR(OpReg, rd, Funct3SLL, rs1, rs2, Funct7Base) }
func SLT(rd, rs1, rs2 uint32) uint32  { return EncodeR(OpReg, rd, Funct3SLT, rs1, rs2, Funct7Base) }
func SLTU(rd, rs1, rs2 uint32) uint32 { return EncodeR(OpReg, rd, Funct3SLTU, rs1, rs2, Funct7Base) }
func XOR(rd, rs1, rs2 uint32) uint32  { return EncodeR(OpReg, rd, Funct3XOR, rs1, rs2, Funct7Base) }
func SRL(rd, rs1, rs2 uint32) uint32  { return EncodeR(OpReg, rd, Funct3SR, rs1, rs2, Funct7Base) }
func SRA(rd, rs1, rs2 uint32) uint32  { return EncodeR(OpReg, rd, Funct3SR, rs1, rs2, Funct7Alt) }
func OR(rd, rs1, rs2 uint32) uint32   { return EncodeR(OpReg, rd, Funct3OR, rs1, rs2, Funct7Base) }
func AND(rd, rs1, rs2 uint32) uint32  { return EncodeR(OpReg, rd, Funct3AND, rs1, rs2, Funct7Base) }

func MUL(rd, rs1, rs2 uint32) uint32 { return EncodeR(OpReg, rd, Funct3ADD, rs1, rs2, Funct7MulDiv) }
func MULH(rd, rs1, rs2 uint32) uint32 {
	return EncodeR(OpReg, rd, Funct3SLL, rs1, rs2, Funct7MulDiv)
}
func MULHSU(rd, rs1, rs2 uint32) uint32 {
	return EncodeR(OpReg, rd, Funct3SLT, rs1, rs2, Funct7MulDiv)
}
func MULHU(rd, rs1, rs2 uint32) uint32 {
	return EncodeR(OpReg, rd, Funct3SLTU, rs1, rs2, Funct7MulDiv)
}
func DIV(rd, rs1, rs2 uint32) uint32  { return EncodeR(OpReg, rd, Funct3XOR, rs1, rs2, Funct7MulDiv) }
func DIVU(rd, rs1, rs2 uint32) uint32 { return EncodeR(OpReg, rd, Funct3SR, rs1, rs2, Funct7MulDiv) }
func REM(rd, rs1, rs2 uint32) uint32  { return EncodeR(OpReg, rd, Funct3OR, rs1, rs2, Funct7MulDiv) }
func REMU(rd, rs1, rs2 uint32) uint32 { return EncodeR(OpReg, rd, Funct3AND, rs1, rs2, Funct7MulDiv) }

func LB(rd, rs1 uint32, imm int32) uint32  { return EncodeI(OpLoad, rd, Funct3LB, rs1, imm) }
func LH(rd, rs1 uint32, imm int32) uint32  { return EncodeI(OpLoad, rd, Funct3LH, rs1, imm) }
func LW(rd, rs1 uint32, imm int32) uint32  { return EncodeI(OpLoad, rd, Funct3LW, rs1, imm) }
func LBU(rd, rs1 uint32, imm int32) uint32 { return EncodeI(OpLoad, rd, Funct3LBU, rs1, imm) }
func LHU(rd, rs1 uint32, imm int32) uint32 { return EncodeI(OpLoad, rd, Funct3LHU, rs1, imm) }

func SB(rs1, rs2 uint32, imm int32) uint32 { return EncodeS(OpStore, Funct3SB, rs1, rs2, imm) }
func SH(rs1, rs2 uint32, imm int32) uint32 { return EncodeS(OpStore, Funct3SH, rs1, rs2, imm) }
func SW(rs1, rs2 uint32, imm int32) uint32 { return EncodeS(OpStore, Funct3SW, rs1, rs2, imm) }

func BEQ(rs1, rs2 uint32, imm int32) uint32  { return EncodeB(OpBranch, Funct3BEQ, rs1, rs2, imm) }
func BNE(rs1, rs2 uint32, imm int32) uint32  { return EncodeB(OpBranch, Funct3BNE, rs1, rs2, imm) }
func BLT(rs1, rs2 uint32, imm int32) uint32  { return EncodeB(OpBranch, Funct3BLT, rs1, rs2, imm) }
func BGE(rs1, rs2 uint32, imm int32) uint32  { return EncodeB(OpBranch, Funct3BGE, rs1, rs2, imm) }
func BLTU(rs1, rs2 uint32, imm int32) uint32 { return EncodeB(OpBranch, Funct3BLTU, rs1, rs2, imm) }
func BGEU(rs1, rs2 uint32, imm int32) uint32 { return EncodeB(OpBranch, Funct3BGEU, rs1, rs2, imm) }

func LUI(rd, imm uint32) uint32   { return EncodeU(OpLUI, rd, imm) }
func AUIPC(rd, imm uint32) uint32 { return EncodeU(OpAUIPC, rd, imm) }

func JAL(rd uint32, imm int32) uint32       { return EncodeJ(OpJAL, rd, imm) }
func JALR(rd, rs1 uint32, imm int32) uint32 { return EncodeI(OpJALR, rd, 0, rs1, imm) }

func CSRRW(rd, csr, rs1 uint32) uint32 { return EncodeI(OpSystem, rd, Funct3CSRRW, rs1, int32(csr)) }
func CSRRS(rd, csr, rs1 uint32) uint32 { return EncodeI(OpSystem, rd, Funct3CSRRS, rs1, int32(csr)) }
func CSRRC(rd, csr, rs1 uint32) uint32 { return EncodeI(OpSystem, rd, Funct3CSRRC, rs1, int32(csr)) }

// The immediate CSR forms carry a 5-bit zero-extended value in the rs1 field.
func CSRRWI(rd, csr, uimm uint32) uint32 {
	return EncodeI(OpSystem, rd, Funct3CSRRWI, uimm, int32(csr))
}
func CSRRSI(rd, csr, uimm uint32) uint32 {
	return EncodeI(OpSystem, rd, Funct3CSRRSI, uimm, int32(csr))
}
func CSRRCI(rd, csr, uimm uint32) uint32 {
	return EncodeI(OpSystem, rd, Funct3CSRRCI, uimm, int32(csr))
}

// Program assembles instruction words into a little-endian flash image.
func Program(instrs ...uint32) []byte {
	out := make([]byte, 0, len(instrs)*InstrWidth)
	for _, in := range instrs {
		out = binary.LittleEndian.AppendUint32(out, in)
	}
	return out
}
