package fast

import "github.com/holiman/uint256"

// 32-bit word helpers for the executor. All values are raw words; signed
// operations reinterpret them as two's complement.

type U32 = uint32

type U256 = uint256.Int

func signExtend32(v U32, bit uint) U32 {
	switch v & (1 << bit) {
	case 0:
		// fill with zeroes, by masking
		return v & (^U32(0) >> (31 - bit))
	default:
		// fill with ones, by or-ing
		return v | (^U32(0) << bit)
	}
}

func slt32(x, y U32) U32 {
	if int32(x) < int32(y) {
		return 1
	}
	return 0
}

func lt32(x, y U32) U32 {
	if x < y {
		return 1
	}
	return 0
}

func shl32(shamt, v U32) U32 {
	return v << (shamt & 0x1F)
}

func shr32(shamt, v U32) U32 {
	return v >> (shamt & 0x1F)
}

func sar32(shamt, v U32) U32 {
	return U32(int32(v) >> (shamt & 0x1F))
}

// Division by zero and signed overflow follow the RISC-V M extension:
// no trap, quotient all ones, remainder equal to the dividend.

func div32(x, y U32) U32 {
	if y == 0 {
		return ^U32(0)
	}
	return x / y
}

func sdiv32(x, y U32) U32 {
	if y == 0 {
		return ^U32(0)
	}
	if x == 1<<31 && y == ^U32(0) {
		return 1 << 31
	}
	return U32(int32(x) / int32(y))
}

func mod32(x, y U32) U32 {
	if y == 0 {
		return x
	}
	return x % y
}

func smod32(x, y U32) U32 {
	if y == 0 {
		return x
	}
	if x == 1<<31 && y == ^U32(0) {
		return 0
	}
	return U32(int32(x) % int32(y))
}

func u32ToU256(v U32) U256 {
	return *uint256.NewInt(uint64(v))
}

func signExtend32To256(v U32) U256 {
	out := u32ToU256(v)
	if v&(1<<31) != 0 {
		var hi U256
		hi.Lsh(new(U256).Not(uint256.NewInt(0)), 32)
		out.Or(&out, &hi)
	}
	return out
}

// mulHigh returns bits [32, 64) of the product.
func mulHigh(x, y U256) U32 {
	var prod U256
	prod.Mul(&x, &y)
	prod.Rsh(&prod, 32)
	return U32(prod.Uint64())
}
