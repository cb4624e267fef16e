package cmd

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/rvemu/rvemu/rvgo/bus"
	"github.com/rvemu/rvemu/rvgo/fast"
	rv "github.com/rvemu/rvemu/rvgo/riscv"
)

func testConfig() MachineConfig {
	return MachineConfig{
		Flash:       bus.Range{Start: 0, Size: 0x1_0000},
		RAM:         bus.Range{Start: rv.DefaultRAMBase, Size: 0x1_0000},
		Console:     true,
		ConsoleBase: rv.DefaultConsoleBase,
	}
}

// testELF builds a minimal ELF32 executable with a single PT_LOAD segment.
func testELF(entry, paddr uint32, code []byte, memsz uint32) []byte {
	const ehsize, phentsize = 52, 32
	var buf bytes.Buffer
	buf.Write([]byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS32), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT)})
	buf.Write(make([]byte, 9))
	w := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }
	w(uint16(elf.ET_EXEC))
	w(uint16(elf.EM_RISCV))
	w(uint32(elf.EV_CURRENT))
	w(entry)
	w(uint32(ehsize))
	w(uint32(0))
	w(uint32(0))
	w(uint16(ehsize))
	w(uint16(phentsize))
	w(uint16(1))
	w(uint16(40))
	w(uint16(0))
	w(uint16(0))

	w(uint32(elf.PT_LOAD))
	w(uint32(ehsize + phentsize))
	w(paddr)
	w(paddr)
	w(uint32(len(code)))
	w(memsz)
	w(uint32(elf.PF_R | elf.PF_X))
	w(uint32(4))
	buf.Write(code)
	return buf.Bytes()
}

func TestMachineLoadRaw(t *testing.T) {
	m, err := NewMachine(testConfig())
	require.NoError(t, err)
	require.NoError(t, m.LoadImage(rv.Program(rv.ADDI(1, 0, 3), rv.InstrEBreak)))
	require.Equal(t, uint32(0), m.Core.PC)
	require.Equal(t, fast.StopHalt, m.Core.Run(nil, nil).Reason)
	require.Equal(t, uint32(3), m.Core.ReadRegister(1))
	require.Equal(t, "!unknown", m.LookupSymbol(0))
}

func TestMachineLoadELF(t *testing.T) {
	m, err := NewMachine(testConfig())
	require.NoError(t, err)
	code := rv.Program(rv.ADDI(1, 0, 4), rv.InstrEBreak)
	require.NoError(t, m.LoadImage(testELF(rv.DefaultRAMBase, rv.DefaultRAMBase, code, 8)))
	require.Equal(t, uint32(rv.DefaultRAMBase), m.Core.PC, "the entry point is the reset vector")
	require.Equal(t, fast.StopHalt, m.Core.Run(nil, nil).Reason)
	require.Equal(t, uint32(4), m.Core.ReadRegister(1))
}

func TestMachineLoadImageFile(t *testing.T) {
	dir := t.TempDir()
	m, err := NewMachine(testConfig())
	require.NoError(t, err)

	empty := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	require.ErrorIs(t, m.LoadImageFile(empty), bus.ErrEmptyImage)

	require.Error(t, m.LoadImageFile(filepath.Join(dir, "missing.bin")))

	big := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(big, make([]byte, 0x1_0001), 0o644))
	require.ErrorContains(t, m.LoadImageFile(big), "does not fit")
}

func TestMachineSetupErrors(t *testing.T) {
	cfg := testConfig()
	cfg.RAM.Size = 0
	_, err := NewMachine(cfg)
	require.Error(t, err)
}

func TestMachineConsole(t *testing.T) {
	var logs bytes.Buffer
	cfg := testConfig()
	cfg.ConsoleOut = &LoggingWriter{Name: "console", Log: Logger(&logs, log.LevelInfo)}
	m, err := NewMachine(cfg)
	require.NoError(t, err)

	prog := []uint32{rv.LUI(1, rv.DefaultConsoleBase)}
	for _, c := range "hi\n" {
		prog = append(prog, rv.ADDI(2, 0, int32(c)), rv.SB(1, 2, 0))
	}
	prog = append(prog,
		rv.ADDI(2, 0, 0x7f), rv.SB(1, 2, 0), // no newline, left in the line buffer
		rv.LW(3, 1, 4),
		rv.InstrEBreak,
	)
	require.NoError(t, m.LoadImage(rv.Program(prog...)))
	require.Equal(t, fast.StopHalt, m.Core.Run(nil, nil).Reason)
	require.Equal(t, uint32(1), m.Core.ReadRegister(3), "status reads as ready")
	require.Contains(t, logs.String(), "text=hi")

	require.NoError(t, m.Close())
	require.Contains(t, logs.String(), "data=0x7f", "partial binary output is flushed on close")
}
