package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/rvemu/rvemu/rvgo/bus"
	"github.com/rvemu/rvemu/rvgo/fast"
	rv "github.com/rvemu/rvemu/rvgo/riscv"
)

const (
	selfTestMemSize  = 0x1_0000
	selfTestMaxSteps = 100_000
)

// SelfTest is a built-in program with the register values it must end with.
type SelfTest struct {
	Name    string
	Program []uint32
	Want    map[uint32]uint32 // register -> value, all others are not checked
	WantPC  uint32
}

var addiReference = [rv.RegCount]uint32{
	0x00, 0x11, 0x33, 0x66, 0xaa, 0xff, 0x165, 0x1dc, 0x264, 0x2fd, 0x3fd, 0x50e,
	0x630, 0x763, 0x8a7, 0x9fc, 0xb65, 0xcd5, 0xe55, 0xfe5, 0x11e5, 0x13f5,
	0x1615, 0x1845, 0x1a85, 0x1cd5, 0x1f35, 0x21a5, 0x2425, 0x26b5, 0x2ab3, 0x26b3,
}

func addiTest() SelfTest {
	prog := []uint32{rv.ADDI(1, 0, int32(addiReference[1]))}
	want := map[uint32]uint32{0: 0, 1: addiReference[1]}
	for i := uint32(2); i < rv.RegCount; i++ {
		prog = append(prog, rv.ADDI(i, i-1, int32(addiReference[i]-addiReference[i-1])))
		want[i] = addiReference[i]
	}
	return SelfTest{
		Name:    "addi",
		Program: append(prog, rv.InstrEBreak),
		Want:    want,
		WantPC:  (rv.RegCount - 1) * rv.InstrWidth,
	}
}

// SelfTests run against a small machine: flash at 0, RAM at DefaultRAMBase.
var SelfTests = []SelfTest{
	{
		Name:    "ebreak",
		Program: []uint32{rv.InstrEBreak},
		Want:    map[uint32]uint32{},
		WantPC:  0,
	},
	addiTest(),
	{
		Name: "alu",
		Program: []uint32{
			rv.ADDI(1, 0, -1),      // 0x00
			rv.ADDI(2, 0, 5),       // 0x04
			rv.SUB(3, 2, 1),        // 0x08
			rv.SLT(4, 1, 2),        // 0x0c
			rv.SLTU(5, 1, 2),       // 0x10
			rv.XORI(6, 2, -1),      // 0x14
			rv.SRAI(7, 1, 4),       // 0x18
			rv.SRLI(8, 1, 28),      // 0x1c
			rv.SLLI(9, 2, 3),       // 0x20
			rv.ORI(10, 2, 0x30),    // 0x24
			rv.ANDI(11, 1, 0x7f0),  // 0x28
			rv.LUI(12, 0x12345000), // 0x2c
			rv.ADDI(12, 12, 0x678), // 0x30
			rv.AUIPC(13, 0x1000),   // 0x34
			rv.SRA(14, 1, 2),       // 0x38
			rv.SLL(15, 2, 2),       // 0x3c
			rv.InstrEBreak,         // 0x40
		},
		Want: map[uint32]uint32{
			1: 0xffffffff, 2: 5, 3: 6, 4: 1, 5: 0, 6: 0xfffffffa, 7: 0xffffffff,
			8: 0xf, 9: 0x28, 10: 0x35, 11: 0x7f0, 12: 0x12345678, 13: 0x1034,
			14: 0xffffffff, 15: 0xa0,
		},
		WantPC: 0x40,
	},
	{
		Name: "load-store",
		Program: []uint32{
			rv.LUI(1, rv.DefaultRAMBase), // 0x00
			rv.LUI(2, 0x80ff8000),        // 0x04
			rv.ADDI(2, 2, -0xff),         // 0x08
			rv.SW(1, 2, 0),               // 0x0c
			rv.LB(3, 1, 2),               // 0x10
			rv.LBU(4, 1, 2),              // 0x14
			rv.LH(5, 1, 2),               // 0x18
			rv.LHU(6, 1, 2),              // 0x1c
			rv.LW(7, 1, 0),               // 0x20
			rv.SB(1, 2, 5),               // 0x24
			rv.SH(1, 2, 6),               // 0x28
			rv.LW(8, 1, 4),               // 0x2c
			rv.InstrEBreak,               // 0x30
		},
		Want: map[uint32]uint32{
			2: 0x80ff7f01, 3: 0xffffffff, 4: 0xff, 5: 0xffff80ff, 6: 0x80ff,
			7: 0x80ff7f01, 8: 0x7f010100,
		},
		WantPC: 0x30,
	},
	{
		Name: "loop",
		Program: []uint32{
			rv.ADDI(1, 0, 10), // 0x00
			rv.ADDI(2, 0, 0),  // 0x04
			rv.ADD(2, 2, 1),   // 0x08
			rv.ADDI(1, 1, -1), // 0x0c
			rv.BNE(1, 0, -8),  // 0x10
			rv.InstrEBreak,    // 0x14
		},
		Want:   map[uint32]uint32{1: 0, 2: 55},
		WantPC: 0x14,
	},
	{
		Name: "branches",
		Program: []uint32{
			rv.ADDI(1, 0, -1), // 0x00
			rv.ADDI(2, 0, 1),  // 0x04
			rv.BLT(1, 2, 8),   // 0x08 taken
			rv.ADDI(3, 0, 1),  // 0x0c
			rv.BLTU(1, 2, 8),  // 0x10 not taken
			rv.ADDI(4, 0, 1),  // 0x14
			rv.BGEU(1, 2, 8),  // 0x18 taken
			rv.ADDI(5, 0, 1),  // 0x1c
			rv.BGE(2, 1, 8),   // 0x20 taken
			rv.ADDI(6, 0, 1),  // 0x24
			rv.BEQ(1, 1, 8),   // 0x28 taken
			rv.ADDI(7, 0, 1),  // 0x2c
			rv.BNE(1, 1, 8),   // 0x30 not taken
			rv.ADDI(8, 0, 1),  // 0x34
			rv.InstrEBreak,    // 0x38
		},
		Want:   map[uint32]uint32{3: 0, 4: 1, 5: 0, 6: 0, 7: 0, 8: 1},
		WantPC: 0x38,
	},
	{
		Name: "jumps",
		Program: []uint32{
			rv.JAL(1, 12),    // 0x00
			rv.ADDI(3, 0, 7), // 0x04
			rv.InstrEBreak,   // 0x08
			rv.ADDI(2, 0, 5), // 0x0c
			rv.JALR(5, 1, 0), // 0x10
		},
		Want:   map[uint32]uint32{1: 4, 2: 5, 3: 7, 5: 0x14},
		WantPC: 0x08,
	},
	{
		Name: "muldiv",
		Program: []uint32{
			rv.ADDI(1, 0, -7),  // 0x00
			rv.ADDI(2, 0, 2),   // 0x04
			rv.MUL(3, 1, 2),    // 0x08
			rv.MULH(4, 1, 2),   // 0x0c
			rv.MULHU(5, 1, 2),  // 0x10
			rv.MULHSU(6, 1, 2), // 0x14
			rv.DIV(7, 1, 2),    // 0x18
			rv.DIVU(8, 1, 2),   // 0x1c
			rv.REM(9, 1, 2),    // 0x20
			rv.REMU(10, 1, 2),  // 0x24
			rv.DIV(11, 1, 0),   // 0x28
			rv.REM(12, 1, 0),   // 0x2c
			rv.InstrEBreak,     // 0x30
		},
		Want: map[uint32]uint32{
			3: 0xfffffff2, 4: 0xffffffff, 5: 1, 6: 0xffffffff, 7: 0xfffffffd,
			8: 0x7ffffffc, 9: 0xffffffff, 10: 1, 11: 0xffffffff, 12: 0xfffffff9,
		},
		WantPC: 0x30,
	},
	{
		Name: "csr",
		Program: []uint32{
			rv.ADDI(1, 0, 0x55),               // 0x00
			rv.CSRRW(2, rv.CSRMScratch, 1),    // 0x04
			rv.CSRRSI(3, rv.CSRMScratch, 0xa), // 0x08
			rv.CSRRC(4, rv.CSRMScratch, 1),    // 0x0c
			rv.CSRRS(5, rv.CSRMScratch, 0),    // 0x10
			rv.InstrEBreak,                    // 0x14
		},
		Want:   map[uint32]uint32{2: 0, 3: 0x55, 4: 0x5f, 5: 0x0a},
		WantPC: 0x14,
	},
}

// Check runs the program on a fresh machine and reports the first mismatch.
func (st *SelfTest) Check() error {
	m, err := NewMachine(MachineConfig{
		Flash: bus.Range{Start: rv.DefaultFlashBase, Size: selfTestMemSize},
		RAM:   bus.Range{Start: rv.DefaultRAMBase, Size: selfTestMemSize},
	})
	if err != nil {
		return err
	}
	if _, err := m.Flash.Load(bytes.NewReader(rv.Program(st.Program...))); err != nil {
		return err
	}
	m.Core.Reset()
	stop := m.Core.Run(nil, func(c *fast.Core) bool {
		return c.Steps >= selfTestMaxSteps
	})
	if stop.Reason != fast.StopHalt {
		return fmt.Errorf("stopped with %s at pc %08x: %v", stop.Reason, stop.PC, stop.Err)
	}
	if stop.PC != st.WantPC {
		return fmt.Errorf("halted at pc %08x, want %08x", stop.PC, st.WantPC)
	}
	if x0 := m.Core.ReadRegister(0); x0 != 0 {
		return fmt.Errorf("x0 is %08x", x0)
	}
	for reg := uint32(0); reg < rv.RegCount; reg++ {
		want, ok := st.Want[reg]
		if !ok {
			continue
		}
		if got := m.Core.ReadRegister(reg); got != want {
			return fmt.Errorf("x%d is %08x, want %08x", reg, got, want)
		}
	}
	return nil
}

// RunSelfTests runs all built-in programs and fails if any of them fails.
func RunSelfTests(l log.Logger) error {
	failed := 0
	for i := range SelfTests {
		st := &SelfTests[i]
		if err := st.Check(); err != nil {
			failed++
			l.Error("self-test failed", "test", st.Name, "err", err)
			continue
		}
		l.Info("self-test passed", "test", st.Name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d self-tests failed", failed, len(SelfTests))
	}
	l.Info("all self-tests passed", "count", len(SelfTests))
	return nil
}

func SelfTestAction(ctx *cli.Context) error {
	lvl, err := ParseLevel(ctx.String(LogLevelFlag.Name))
	if err != nil {
		return err
	}
	return RunSelfTests(Logger(os.Stderr, lvl))
}

var SelfTestCommand = &cli.Command{
	Name:        "selftest",
	Usage:       "Run the built-in instruction tests",
	Description: "Run small programs covering every implemented instruction and check the final register file.",
	Action:      SelfTestAction,
	Flags:       []cli.Flag{LogLevelFlag},
}
