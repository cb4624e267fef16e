package fast

// StopReason tells why execution stopped.
type StopReason uint8

const (
	StopStep       StopReason = iota // a single step completed
	StopHalt                         // EBREAK
	StopBreakpoint                   // the pc reached a breakpoint
	StopInterrupt                    // the stop predicate fired
	StopFault                        // decode or address fault
)

func (r StopReason) String() string {
	switch r {
	case StopStep:
		return "step"
	case StopHalt:
		return "ebreak"
	case StopBreakpoint:
		return "breakpoint"
	case StopInterrupt:
		return "interrupt"
	case StopFault:
		return "fault"
	default:
		return "unknown"
	}
}

type Stop struct {
	Reason StopReason
	PC     U32
	Err    error // set for StopFault
}

// ShouldStop is polled after every retired instruction.
type ShouldStop func(c *Core) bool

// SingleStep runs exactly one instruction.
func (c *Core) SingleStep() Stop {
	if err := c.Step(); err != nil {
		return Stop{Reason: StopFault, PC: c.PC, Err: err}
	}
	if c.Status == StatusHalted {
		return Stop{Reason: StopHalt, PC: c.PC}
	}
	return Stop{Reason: StopStep, PC: c.PC}
}

// Run executes until EBREAK, a fault, a breakpoint or the stop predicate.
// The first instruction always executes, so a run that starts on a
// breakpoint moves past it. bps and shouldStop may be nil.
func (c *Core) Run(bps *Breakpoints, shouldStop ShouldStop) Stop {
	for {
		stop := c.SingleStep()
		if stop.Reason != StopStep {
			return stop
		}
		if bps.Has(c.PC) {
			return Stop{Reason: StopBreakpoint, PC: c.PC}
		}
		if shouldStop != nil && shouldStop(c) {
			return Stop{Reason: StopInterrupt, PC: c.PC}
		}
	}
}
