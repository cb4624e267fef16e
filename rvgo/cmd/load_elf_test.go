package cmd

import (
	"bytes"
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	rv "github.com/rvemu/rvemu/rvgo/riscv"
)

func TestFlattenELF(t *testing.T) {
	code := rv.Program(rv.ADDI(1, 0, 5), rv.InstrEBreak)
	f, err := elf.NewFile(bytes.NewReader(testELF(0x100, 0x100, code, 0x10)))
	require.NoError(t, err)

	image, err := FlattenELF(log.Root(), f, testConfig())
	require.NoError(t, err)
	require.Len(t, image, 0x110)
	require.Equal(t, make([]byte, 0x100), image[:0x100])
	require.Equal(t, code, image[0x100:0x108])
}

func TestFlattenELFOutsideFlash(t *testing.T) {
	f, err := elf.NewFile(bytes.NewReader(testELF(rv.DefaultRAMBase, rv.DefaultRAMBase, []byte{1, 2, 3, 4}, 4)))
	require.NoError(t, err)
	_, err = FlattenELF(log.Root(), f, testConfig())
	require.ErrorContains(t, err, "no loadable segment")
}

func TestLoadELFCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "prog.elf")
	out := filepath.Join(dir, "prog.bin")
	code := rv.Program(rv.ADDI(1, 0, 5), rv.InstrEBreak)
	require.NoError(t, os.WriteFile(in, testELF(0, 0, code, 8), 0o644))

	require.NoError(t, runApp("load-elf", "--log.level", "error", "--path", in, "--out", out))
	image, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, code, image)

	// the flattened image runs the same as the ELF
	require.NoError(t, runApp("--log.level", "error", out))
}
