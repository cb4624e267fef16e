package fast

import (
	"errors"
	"fmt"

	"github.com/rvemu/rvemu/rvgo/riscv"
)

// Step runs a single fetch/execute cycle.
// EBREAK halts without moving the pc and is not an error. Faults are returned
// as errors and leave registers, pc and memory as they were.
func (c *Core) Step() error {
	c.Status = StatusFetch
	pc := c.PC
	if pc%riscv.InstrWidth != 0 {
		c.Status = StatusFaulted
		return &MisalignedFault{PC: pc, Target: pc}
	}

	instr, err := c.Bus.Load(pc, riscv.InstrWidth)
	if err != nil {
		c.Status = StatusFaulted
		return fmt.Errorf("instruction fetch at %08x: %w", pc, err)
	}
	c.Instr = instr

	if err := c.execute(pc, Decode(instr)); err != nil {
		var df *DecodeFault
		if errors.As(err, &df) {
			c.Status = StatusIllegal
		} else {
			c.Status = StatusFaulted
		}
		return err
	}
	if c.Status != StatusHalted {
		c.Steps++
	}
	return nil
}

func (c *Core) execute(pc U32, in Instr) error {
	illegal := func() error {
		return &DecodeFault{PC: pc, Raw: in.Raw}
	}
	jumpTo := func(target U32) (U32, error) {
		if target%riscv.InstrWidth != 0 {
			return 0, &MisalignedFault{PC: pc, Target: target}
		}
		return target, nil
	}

	next := pc + riscv.InstrWidth

	switch in.Opcode {
	case riscv.OpLoad: // LB, LH, LW, LBU, LHU
		var size int
		switch in.Funct3 {
		case riscv.Funct3LB, riscv.Funct3LBU:
			size = 1
		case riscv.Funct3LH, riscv.Funct3LHU:
			size = 2
		case riscv.Funct3LW:
			size = 4
		default:
			return illegal()
		}
		signed := in.Funct3&4 == 0 // 4 = 100 -> bitflag
		addr := c.ReadRegister(in.Rs1) + in.Imm
		v, err := c.Bus.Load(addr, size)
		if err != nil {
			return fmt.Errorf("load at pc %08x: %w", pc, err)
		}
		if signed && size < 4 {
			v = signExtend32(v, uint(size*8-1))
		}
		c.WriteRegister(in.Rd, v)
	case riscv.OpStore: // SB, SH, SW
		var size int
		switch in.Funct3 {
		case riscv.Funct3SB:
			size = 1
		case riscv.Funct3SH:
			size = 2
		case riscv.Funct3SW:
			size = 4
		default:
			return illegal()
		}
		addr := c.ReadRegister(in.Rs1) + in.Imm
		if err := c.Bus.Store(addr, size, c.ReadRegister(in.Rs2)); err != nil {
			return fmt.Errorf("store at pc %08x: %w", pc, err)
		}
	case riscv.OpBranch:
		rs1Value := c.ReadRegister(in.Rs1)
		rs2Value := c.ReadRegister(in.Rs2)
		var branchHit bool
		switch in.Funct3 {
		case riscv.Funct3BEQ:
			branchHit = rs1Value == rs2Value
		case riscv.Funct3BNE:
			branchHit = rs1Value != rs2Value
		case riscv.Funct3BLT:
			branchHit = slt32(rs1Value, rs2Value) != 0
		case riscv.Funct3BGE:
			branchHit = slt32(rs1Value, rs2Value) == 0
		case riscv.Funct3BLTU:
			branchHit = rs1Value < rs2Value
		case riscv.Funct3BGEU:
			branchHit = rs1Value >= rs2Value
		default:
			return illegal()
		}
		if branchHit {
			// the offset is relative to the branch itself
			target, err := jumpTo(pc + in.Imm)
			if err != nil {
				return err
			}
			next = target
		}
	case riscv.OpImm:
		rs1Value := c.ReadRegister(in.Rs1)
		imm := in.Imm
		var rdValue U32
		switch in.Funct3 {
		case riscv.Funct3ADD: // ADDI
			rdValue = rs1Value + imm
		case riscv.Funct3SLT: // SLTI
			rdValue = slt32(rs1Value, imm)
		case riscv.Funct3SLTU: // SLTIU: the sign-extended immediate, compared unsigned
			rdValue = lt32(rs1Value, imm)
		case riscv.Funct3XOR: // XORI
			rdValue = rs1Value ^ imm
		case riscv.Funct3OR: // ORI
			rdValue = rs1Value | imm
		case riscv.Funct3AND: // ANDI
			rdValue = rs1Value & imm
		case riscv.Funct3SLL: // SLLI
			if in.Funct7 != riscv.Funct7Base {
				return illegal()
			}
			rdValue = shl32(imm, rs1Value)
		case riscv.Funct3SR:
			switch in.Funct7 { // the top 7 bits select the shift type
			case riscv.Funct7Base: // SRLI
				rdValue = shr32(imm, rs1Value)
			case riscv.Funct7Alt: // SRAI
				rdValue = sar32(imm, rs1Value)
			default:
				return illegal()
			}
		}
		c.WriteRegister(in.Rd, rdValue)
	case riscv.OpReg:
		rs1Value := c.ReadRegister(in.Rs1)
		rs2Value := c.ReadRegister(in.Rs2)
		var rdValue U32
		switch in.Funct7 {
		case riscv.Funct7MulDiv: // RV M extension
			switch in.Funct3 {
			case 0: // 000 = MUL
				rdValue = rs1Value * rs2Value
			case 1: // 001 = MULH: upper bits of signed x signed
				rdValue = mulHigh(signExtend32To256(rs1Value), signExtend32To256(rs2Value))
			case 2: // 010 = MULHSU: upper bits of signed x unsigned
				rdValue = mulHigh(signExtend32To256(rs1Value), u32ToU256(rs2Value))
			case 3: // 011 = MULHU: upper bits of unsigned x unsigned
				rdValue = mulHigh(u32ToU256(rs1Value), u32ToU256(rs2Value))
			case 4: // 100 = DIV
				rdValue = sdiv32(rs1Value, rs2Value)
			case 5: // 101 = DIVU
				rdValue = div32(rs1Value, rs2Value)
			case 6: // 110 = REM
				rdValue = smod32(rs1Value, rs2Value)
			case 7: // 111 = REMU
				rdValue = mod32(rs1Value, rs2Value)
			}
		case riscv.Funct7Base, riscv.Funct7Alt:
			alt := in.Funct7 == riscv.Funct7Alt
			switch in.Funct3 {
			case riscv.Funct3ADD:
				if alt {
					rdValue = rs1Value - rs2Value // SUB
				} else {
					rdValue = rs1Value + rs2Value // ADD
				}
			case riscv.Funct3SR:
				if alt {
					rdValue = sar32(rs2Value, rs1Value) // SRA: sign bit is extended
				} else {
					rdValue = shr32(rs2Value, rs1Value) // SRL: fill with zeroes
				}
			default:
				if alt {
					return illegal()
				}
				switch in.Funct3 {
				case riscv.Funct3SLL:
					rdValue = shl32(rs2Value, rs1Value)
				case riscv.Funct3SLT:
					rdValue = slt32(rs1Value, rs2Value)
				case riscv.Funct3SLTU:
					rdValue = lt32(rs1Value, rs2Value)
				case riscv.Funct3XOR:
					rdValue = rs1Value ^ rs2Value
				case riscv.Funct3OR:
					rdValue = rs1Value | rs2Value
				case riscv.Funct3AND:
					rdValue = rs1Value & rs2Value
				}
			}
		default:
			return illegal()
		}
		c.WriteRegister(in.Rd, rdValue)
	case riscv.OpLUI:
		c.WriteRegister(in.Rd, in.Imm)
	case riscv.OpAUIPC:
		c.WriteRegister(in.Rd, pc+in.Imm)
	case riscv.OpJAL:
		target, err := jumpTo(pc + in.Imm)
		if err != nil {
			return err
		}
		c.WriteRegister(in.Rd, pc+riscv.InstrWidth)
		next = target
	case riscv.OpJALR:
		if in.Funct3 != 0 {
			return illegal()
		}
		// rs1 is read before rd is written, so rd may alias rs1
		target, err := jumpTo((c.ReadRegister(in.Rs1) + in.Imm) &^ 1)
		if err != nil {
			return err
		}
		c.WriteRegister(in.Rd, pc+riscv.InstrWidth)
		next = target
	case riscv.OpMiscMem:
		// FENCE / FENCE.I: no pipeline and a single hart, nothing to order.
		if in.Funct3 > 1 {
			return illegal()
		}
	case riscv.OpSystem:
		switch in.Funct3 {
		case riscv.Funct3Priv:
			if in.Raw != riscv.InstrEBreak { // ECALL, xRET, WFI
				return illegal()
			}
			c.Status = StatusHalted
			return nil
		case riscv.Funct3CSRRW, riscv.Funct3CSRRS, riscv.Funct3CSRRC,
			riscv.Funct3CSRRWI, riscv.Funct3CSRRSI, riscv.Funct3CSRRCI:
			value := in.Rs1 // immediate forms: 5-bit zero-extended uimm
			if in.Funct3&4 == 0 {
				value = c.ReadRegister(in.Rs1)
			}
			rdValue := c.updateCSR(in.Imm&0xFFF, value, in.Funct3&3)
			c.WriteRegister(in.Rd, rdValue)
		default:
			return illegal()
		}
	default:
		return illegal()
	}
	c.PC = next
	return nil
}
