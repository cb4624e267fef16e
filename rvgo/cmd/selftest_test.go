package cmd

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	rv "github.com/rvemu/rvemu/rvgo/riscv"
)

func TestSelfTests(t *testing.T) {
	for i := range SelfTests {
		st := &SelfTests[i]
		t.Run(st.Name, func(t *testing.T) {
			require.NoError(t, st.Check())
		})
	}
}

func TestSelfTestDetectsMismatch(t *testing.T) {
	st := SelfTest{
		Name:    "wrong",
		Program: []uint32{rv.ADDI(1, 0, 1), rv.InstrEBreak},
		Want:    map[uint32]uint32{1: 2},
		WantPC:  4,
	}
	require.ErrorContains(t, st.Check(), "x1 is 00000001, want 00000002")

	st.Want = nil
	st.WantPC = 0
	require.ErrorContains(t, st.Check(), "halted at pc 00000004")

	st.Program = []uint32{rv.InstrECall}
	require.ErrorContains(t, st.Check(), "stopped with fault")

	st.Program = []uint32{rv.JAL(0, 0)}
	require.ErrorContains(t, st.Check(), "stopped with interrupt")
}

func TestRunSelfTestsReports(t *testing.T) {
	var logs bytes.Buffer
	require.NoError(t, RunSelfTests(Logger(&logs, log.LevelInfo)))
	require.Contains(t, logs.String(), "test=muldiv")
	require.Contains(t, logs.String(), "all self-tests passed")
}
