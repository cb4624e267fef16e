package fast

import (
	"testing"

	"github.com/stretchr/testify/require"

	rv "github.com/rvemu/rvemu/rvgo/riscv"
)

func nops(n int, tail ...uint32) []uint32 {
	prog := make([]uint32, 0, n+len(tail))
	for i := 0; i < n; i++ {
		prog = append(prog, rv.InstrNop)
	}
	return append(prog, tail...)
}

func TestRunUntilEBreak(t *testing.T) {
	// count x1 down from 5, incrementing x2 each time
	core, _ := newTestCore(t,
		rv.ADDI(1, 0, 5),
		rv.ADDI(2, 2, 1),
		rv.ADDI(1, 1, -1),
		rv.BNE(1, 0, -8),
		rv.InstrEBreak,
	)
	stop := core.Run(nil, nil)
	require.Equal(t, StopHalt, stop.Reason)
	require.Equal(t, U32(16), stop.PC)
	require.Equal(t, U32(0), core.ReadRegister(1))
	require.Equal(t, U32(5), core.ReadRegister(2))
	require.Equal(t, uint64(16), core.Steps)
}

func TestRunBreakpoints(t *testing.T) {
	core, _ := newTestCore(t, nops(8, rv.InstrEBreak)...)
	bps := NewBreakpoints()
	bps.Add(0x10)

	stop := core.Run(bps, nil)
	require.Equal(t, Stop{Reason: StopBreakpoint, PC: 0x10}, stop)
	require.Equal(t, uint64(4), core.Steps, "the instruction at the breakpoint must not retire")

	// resuming on a breakpoint executes it and moves on
	bps.Add(0x14)
	stop = core.Run(bps, nil)
	require.Equal(t, Stop{Reason: StopBreakpoint, PC: 0x14}, stop)

	require.True(t, bps.Remove(0x10))
	require.True(t, bps.Remove(0x14))
	require.False(t, bps.Remove(0x14))
	stop = core.Run(bps, nil)
	require.Equal(t, Stop{Reason: StopHalt, PC: 0x20}, stop)
}

func TestRunShouldStop(t *testing.T) {
	core, _ := newTestCore(t, rv.JAL(0, 0)) // spins forever
	n := 0
	stop := core.Run(nil, func(c *Core) bool {
		n++
		return n == 1000
	})
	require.Equal(t, StopInterrupt, stop.Reason)
	require.Equal(t, U32(0), stop.PC)
	require.Equal(t, uint64(1000), core.Steps)
}

func TestRunBreakpointBeforeShouldStop(t *testing.T) {
	core, _ := newTestCore(t, nops(4)...)
	bps := NewBreakpoints()
	bps.Add(4)
	stop := core.Run(bps, func(*Core) bool { return true })
	require.Equal(t, StopBreakpoint, stop.Reason)
}

func TestRunFault(t *testing.T) {
	core, _ := newTestCore(t, nops(2, rv.InstrECall)...)
	stop := core.Run(nil, nil)
	require.Equal(t, StopFault, stop.Reason)
	require.Equal(t, U32(8), stop.PC)
	var df *DecodeFault
	require.ErrorAs(t, stop.Err, &df)
	require.Equal(t, StatusIllegal, core.Status)
}

func TestRunMisalignedStart(t *testing.T) {
	core, _ := newTestCore(t, nops(2, rv.InstrEBreak)...)
	core.PC = 6
	stop := core.Run(nil, nil)
	require.Equal(t, StopFault, stop.Reason)
	require.Equal(t, U32(6), stop.PC)
	require.ErrorIs(t, stop.Err, ErrMisaligned)
	require.Equal(t, uint64(0), core.Steps)
}

func TestSingleStep(t *testing.T) {
	core, _ := newTestCore(t, rv.InstrNop, rv.InstrEBreak)
	require.Equal(t, Stop{Reason: StopStep, PC: 4}, core.SingleStep())
	require.Equal(t, Stop{Reason: StopHalt, PC: 4}, core.SingleStep())
	// a halted core stays on the ebreak
	require.Equal(t, Stop{Reason: StopHalt, PC: 4}, core.SingleStep())
}

func TestBreakpointsList(t *testing.T) {
	bps := NewBreakpoints()
	bps.Add(0x30)
	bps.Add(0x10)
	bps.Add(0x20)
	bps.Add(0x10)
	require.Equal(t, 3, bps.Len())
	require.Equal(t, []U32{0x10, 0x20, 0x30}, bps.List())
	bps.Clear()
	require.Equal(t, 0, bps.Len())

	var none *Breakpoints
	require.False(t, none.Has(0))
	require.Equal(t, 0, none.Len())
}
