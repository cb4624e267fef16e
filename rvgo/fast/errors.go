package fast

import (
	"errors"
	"fmt"
)

var ErrMisaligned = errors.New("instruction address misaligned")

// DecodeFault reports an instruction word whose opcode, funct3 and funct7
// combination is not implemented.
type DecodeFault struct {
	PC  U32
	Raw U32
}

func (e *DecodeFault) Error() string {
	return fmt.Sprintf("illegal instruction %08x at pc %08x", e.Raw, e.PC)
}

// MisalignedFault reports a jump, branch or fetch address that is not a
// multiple of the instruction width. PC equals Target for a fetch.
type MisalignedFault struct {
	PC     U32
	Target U32
}

func (e *MisalignedFault) Error() string {
	if e.PC == e.Target {
		return fmt.Sprintf("misaligned pc %08x", e.PC)
	}
	return fmt.Sprintf("jump from %08x to misaligned target %08x", e.PC, e.Target)
}

func (e *MisalignedFault) Unwrap() error {
	return ErrMisaligned
}
