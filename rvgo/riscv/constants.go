package riscv

const (
	InstrWidth = 4
	RegCount   = 32
	// RegPC is the GDB register number of the program counter.
	RegPC = 32

	CSRMScratch = 0x340

	OpLoad    = 0x03 // 000_0011
	OpMiscMem = 0x0F // 000_1111
	OpImm     = 0x13 // 001_0011
	OpAUIPC   = 0x17 // 001_0111
	OpStore   = 0x23 // 010_0011
	OpReg     = 0x33 // 011_0011
	OpLUI     = 0x37 // 011_0111
	OpBranch  = 0x63 // 110_0011
	OpJALR    = 0x67 // 110_0111
	OpJAL     = 0x6F // 110_1111
	OpSystem  = 0x73 // 111_0011

	Funct7Base   = 0x00
	Funct7MulDiv = 0x01
	Funct7Alt    = 0x20 // SUB, SRA, SRAI

	InstrECall  = 0x00000073
	InstrEBreak = 0x00100073
	InstrNop    = 0x00000013 // addi x0, x0, 0

	DefaultFlashBase   = 0x0000_0000
	DefaultFlashSize   = 16 * 1024 * 1024
	DefaultRAMBase     = 0x2000_0000
	DefaultRAMSize     = 16 * 1024 * 1024
	DefaultConsoleBase = 0x1000_0000
	DefaultConsoleSize = 0x100

	DefaultGDBPort = 1234
)

// funct3 values, grouped by opcode.
const (
	Funct3LB  = 0
	Funct3LH  = 1
	Funct3LW  = 2
	Funct3LBU = 4
	Funct3LHU = 5

	Funct3SB = 0
	Funct3SH = 1
	Funct3SW = 2

	Funct3ADD  = 0 // ADD/SUB/ADDI, MUL
	Funct3SLL  = 1 // MULH
	Funct3SLT  = 2 // MULHSU
	Funct3SLTU = 3 // MULHU
	Funct3XOR  = 4 // DIV
	Funct3SR   = 5 // SRL/SRA, DIVU
	Funct3OR   = 6 // REM
	Funct3AND  = 7 // REMU

	Funct3BEQ  = 0
	Funct3BNE  = 1
	Funct3BLT  = 4
	Funct3BGE  = 5
	Funct3BLTU = 6
	Funct3BGEU = 7

	Funct3Priv   = 0
	Funct3CSRRW  = 1
	Funct3CSRRS  = 2
	Funct3CSRRC  = 3
	Funct3CSRRWI = 5
	Funct3CSRRSI = 6
	Funct3CSRRCI = 7
)
