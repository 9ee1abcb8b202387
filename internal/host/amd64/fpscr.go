package amd64

import "math"

// RoundingMode mirrors ARM FPCR.RMode's two-bit encoding (spec §4.5
// "Rounding mode").
type RoundingMode uint8

const (
	RoundNearestEven RoundingMode = iota
	RoundTowardPlusInf
	RoundTowardMinusInf
	RoundTowardZero
)

// FPCRSettings is the decoded subset of FPCR that changes floating-point
// instruction semantics (spec §4.5 "Floating-point": default-NaN forcing,
// flush-to-zero, rounding-mode selection). Grounded on dynarmic's FPCR bit
// layout (common/fp/fpcr.h in the original source); nothing in this package
// decodes the remaining FPCR bits (exception-trap enables, stride/len) since
// no lowered opcode consults them.
type FPCRSettings struct {
	RMode RoundingMode
	FZ    bool // flush-to-zero
	FZ16  bool // flush-to-zero for half-precision
	DN    bool // default-NaN mode
	AHP   bool // alternative half-precision
}

// DecodeFPCR unpacks the raw 32-bit FPCR value's behavior-affecting bits.
func DecodeFPCR(raw uint32) FPCRSettings {
	return FPCRSettings{
		RMode: RoundingMode((raw >> 22) & 0x3),
		FZ:    raw&(1<<24) != 0,
		FZ16:  raw&(1<<19) != 0,
		DN:    raw&(1<<25) != 0,
		AHP:   raw&(1<<26) != 0,
	}
}

// RoundToIntegral rounds x per mode, the control bit selecting which
// library rounding function runs (spec §4.5: "the emitter ... falls back to
// a library function keyed by (size, mode, exactness)").
func RoundToIntegral(x float64, mode RoundingMode) float64 {
	switch mode {
	case RoundTowardPlusInf:
		return math.Ceil(x)
	case RoundTowardMinusInf:
		return math.Floor(x)
	case RoundTowardZero:
		return math.Trunc(x)
	default:
		return math.RoundToEven(x)
	}
}

const (
	defaultNaN64 = 0x7ff8000000000000
	defaultNaN32 = 0x7fc00000
)

// ApplyDefaultNaN64/32 force bits to ARM's default-NaN bit pattern when bits
// encodes a NaN and settings.DN is set (spec §4.5 "Default-NaN forcing").
func ApplyDefaultNaN64(bits uint64, settings FPCRSettings) uint64 {
	if settings.DN && math.IsNaN(math.Float64frombits(bits)) {
		return defaultNaN64
	}
	return bits
}

func ApplyDefaultNaN32(bits uint32, settings FPCRSettings) uint32 {
	if settings.DN && math.IsNaN(float64(math.Float32frombits(bits))) {
		return defaultNaN32
	}
	return bits
}

// isSubnormal64/32 reports whether bits is a nonzero denormal: a biased
// exponent of zero with a nonzero mantissa.
func isSubnormal64(bits uint64) bool {
	exp := (bits >> 52) & 0x7ff
	mant := bits & ((1 << 52) - 1)
	return exp == 0 && mant != 0
}

func isSubnormal32(bits uint32) bool {
	exp := (bits >> 23) & 0xff
	mant := bits & ((1 << 23) - 1)
	return exp == 0 && mant != 0
}

// FlushToZero64/32 replace a subnormal value with a same-signed zero when
// settings.FZ is set (spec §4.5 "Flush-to-zero").
func FlushToZero64(bits uint64, settings FPCRSettings) uint64 {
	if settings.FZ && isSubnormal64(bits) {
		return bits & (1 << 63) // preserve sign only
	}
	return bits
}

func FlushToZero32(bits uint32, settings FPCRSettings) uint32 {
	if settings.FZ && isSubnormal32(bits) {
		return bits & (1 << 31)
	}
	return bits
}
