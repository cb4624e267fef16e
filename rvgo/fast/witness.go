package fast

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// StateWitnessSize is the length of EncodeWitness output.
const StateWitnessSize = 32*4 + 4 + 4 + 4 + 1 + 8

// EncodeWitness serializes the logic state of the core, big-endian:
// registers, pc, mscratch, fetched instruction, status, retired steps.
// Memory is not part of the witness.
func (c *Core) EncodeWitness() []byte {
	out := make([]byte, 0, StateWitnessSize)
	for _, r := range c.Registers {
		out = binary.BigEndian.AppendUint32(out, r)
	}
	out = binary.BigEndian.AppendUint32(out, c.PC)
	out = binary.BigEndian.AppendUint32(out, c.CSR.MScratch)
	out = binary.BigEndian.AppendUint32(out, c.Instr)
	out = append(out, byte(c.Status))
	out = binary.BigEndian.AppendUint64(out, c.Steps)
	return out
}

// StateHash commits to the witness, so two runs can be compared by a single value.
func (c *Core) StateHash() common.Hash {
	return crypto.Keccak256Hash(c.EncodeWitness())
}
