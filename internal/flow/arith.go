package flow

import (
	"fmt"
	"math"
	"math/bits"
)

// ErrOverflow is the panic message used when exact schedule arithmetic
// leaves the int64 range. Overflow means a caller passed times far outside
// any reachable game state, which is a programming error.
const ErrOverflow = "flow: arithmetic overflow"

func overflow(op string, a, b int64) {
	panic(fmt.Sprintf("%s: %s(%d, %d)", ErrOverflow, op, a, b))
}

func checkedAdd(a, b int64) int64 {
	s := a + b
	if (s > a) != (b > 0) {
		overflow("add", a, b)
	}
	return s
}

func checkedSub(a, b int64) int64 {
	s := a - b
	if (s < a) != (b > 0) {
		overflow("sub", a, b)
	}
	return s
}

func checkedMul(a, b int64) int64 {
	hi, lo := bits.Mul64(absU(a), absU(b))
	neg := (a < 0) != (b < 0)
	if hi != 0 || lo > math.MaxInt64+boolU(neg) {
		overflow("mul", a, b)
	}
	if neg {
		return int64(-lo)
	}
	return int64(lo)
}

// mulDiv returns a*b/c rounded down (ceil=false) or up (ceil=true). The
// product is held in 128 bits. c must be positive.
func mulDiv(a, b, c int64, ceil bool) int64 {
	if c <= 0 {
		panic(fmt.Sprintf("flow: mulDiv by non-positive %d", c))
	}
	hi, lo := bits.Mul64(absU(a), absU(b))
	uc := uint64(c)
	if hi >= uc {
		overflow("mulDiv", a, b)
	}
	q, r := bits.Div64(hi, lo, uc)
	neg := (a < 0) != (b < 0) && (hi != 0 || lo != 0)
	if neg {
		// floor of a negative quotient rounds away from zero
		if r != 0 && !ceil {
			q++
		}
		if q > math.MaxInt64+1 {
			overflow("mulDiv", a, b)
		}
		return int64(-q)
	}
	if r != 0 && ceil {
		q++
	}
	if q > math.MaxInt64 {
		overflow("mulDiv", a, b)
	}
	return int64(q)
}

func mulDivFloor(a, b, c int64) int64 {
	return mulDiv(a, b, c, false)
}

func mulDivCeil(a, b, c int64) int64 {
	return mulDiv(a, b, c, true)
}

// CeilDiv returns ⌈a/b⌉ for b > 0.
func CeilDiv(a, b int64) int64 {
	return mulDivCeil(a, 1, b)
}

// FloorDiv returns ⌊a/b⌋ for b > 0.
func FloorDiv(a, b int64) int64 {
	return mulDivFloor(a, 1, b)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ratePeriod is the smallest number of ticks after which a pattern of rate
// repeats its spacing. It divides RateDivisor.
func ratePeriod(rate int64) int64 {
	return RateDivisor / gcd(rate, RateDivisor)
}

func absU(x int64) uint64 {
	if x < 0 {
		return uint64(-x)
	}
	return uint64(x)
}

func boolU(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
