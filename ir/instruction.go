package ir

// Opcode enumerates the closed instruction set. Opcode classes are fixed
// at design time; dispatch is a plain switch, no virtual dispatch.
type Opcode uint8

const (
	OpInvalid Opcode = iota

	// Constants. Imm holds the raw bits: sign-extended integer for
	// Iconst, math.Float32bits for Fconst, 0/1 for Bconst.
	OpIconst
	OpFconst
	OpBconst

	// Integer arithmetic (signed two's complement, wrapping).
	OpIadd
	OpIsub
	OpImul
	OpIdiv

	// Q16.16 fixed-point arithmetic. FixMul widens both operands to
	// 64 bits, multiplies, arithmetic-shifts right 16 and truncates to
	// 32 bits. FixDiv widens the dividend to 64 bits, shifts left 16
	// and divides; a zero divisor saturates to MaxInt32 for dividends
	// >= 0 and MinInt32 otherwise, never trapping.
	OpFixMul
	OpFixDiv

	// Float arithmetic.
	OpFadd
	OpFsub
	OpFmul
	OpFdiv
	OpFneg
	OpFsqrt

	// Min/max.
	OpFmin
	OpFmax
	OpImin
	OpImax

	// Comparisons. Icmp uses IntCond in Cond, Fcmp uses FloatCond.
	// Both produce a Bool8 value holding 0 or 1.
	OpIcmp
	OpFcmp

	// Select picks Args[1] if Args[0] is nonzero, else Args[2].
	OpSelect

	// Conversions.
	OpBoolToFloat // 0/1 -> 0.0/1.0
	OpBoolToInt   // 0/1 -> 0/1 as i32
	OpIshl        // logical shift left by Imm bits

	// Memory. Store writes Args[1] to Args[0]+Imm; Load reads from
	// Args[0]+Imm. Used for output-buffer results.
	OpStore
	OpLoad

	// Call invokes Callee with Args, defining len(Rets) results.
	OpCall

	// Terminators.
	OpJump   // one target in Targets[0]
	OpBranch // Args[0] nonzero -> Targets[0], else Targets[1]
	OpReturn // returns Args
)

var opcodeNames = [...]string{
	OpInvalid:     "invalid",
	OpIconst:      "iconst",
	OpFconst:      "fconst",
	OpBconst:      "bconst",
	OpIadd:        "iadd",
	OpIsub:        "isub",
	OpImul:        "imul",
	OpIdiv:        "idiv",
	OpFixMul:      "fixmul",
	OpFixDiv:      "fixdiv",
	OpFadd:        "fadd",
	OpFsub:        "fsub",
	OpFmul:        "fmul",
	OpFdiv:        "fdiv",
	OpFneg:        "fneg",
	OpFsqrt:       "fsqrt",
	OpFmin:        "fmin",
	OpFmax:        "fmax",
	OpImin:        "imin",
	OpImax:        "imax",
	OpIcmp:        "icmp",
	OpFcmp:        "fcmp",
	OpSelect:      "select",
	OpBoolToFloat: "b2f",
	OpBoolToInt:   "b2i",
	OpIshl:        "ishl",
	OpStore:       "store",
	OpLoad:        "load",
	OpCall:        "call",
	OpJump:        "jump",
	OpBranch:      "br",
	OpReturn:      "return",
}

// String returns the mnemonic used by the printer and parser.
func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "invalid"
}

// IsTerminator reports whether op ends a block.
func (op Opcode) IsTerminator() bool {
	return op == OpJump || op == OpBranch || op == OpReturn
}

// IntCond is an integer comparison condition.
type IntCond uint8

const (
	IntEq IntCond = iota
	IntNe
	IntSlt
	IntSle
	IntSgt
	IntSge
	IntUlt
	IntUle
	IntUgt
	IntUge
)

var intCondNames = [...]string{"eq", "ne", "slt", "sle", "sgt", "sge", "ult", "ule", "ugt", "uge"}

// String returns the condition mnemonic.
func (c IntCond) String() string {
	if int(c) < len(intCondNames) {
		return intCondNames[c]
	}
	return "?"
}

// FloatCond is a float comparison condition. Ordered conditions are false
// when either operand is NaN; unordered conditions are true.
type FloatCond uint8

const (
	FloatOeq FloatCond = iota
	FloatOne
	FloatOlt
	FloatOle
	FloatOgt
	FloatOge
	FloatUeq
	FloatUne
	FloatUlt
	FloatUle
	FloatUgt
	FloatUge
)

var floatCondNames = [...]string{"oeq", "one", "olt", "ole", "ogt", "oge", "ueq", "une", "ult", "ule", "ugt", "uge"}

// String returns the condition mnemonic.
func (c FloatCond) String() string {
	if int(c) < len(floatCondNames) {
		return floatCondNames[c]
	}
	return "?"
}

// Ordered returns the NaN-insensitive equivalent of c. For the ordered
// conditions this is the identity; each unordered condition maps to its
// nearest ordered counterpart.
func (c FloatCond) Ordered() FloatCond {
	if c >= FloatUeq {
		return c - (FloatUeq - FloatOeq)
	}
	return c
}

// Instruction is one IR instruction. Which fields are meaningful depends
// on Op; unused fields are zero.
type Instruction struct {
	Op Opcode

	// Args are value operands.
	Args []Value

	// Rets are the values this instruction defines.
	Rets []Value

	// Imm is the immediate: constant bits, shift amount, or memory
	// offset, depending on Op.
	Imm int64

	// IntCond / FloatCond qualify Icmp and Fcmp.
	IntCond   IntCond
	FloatCond FloatCond

	// Callee is the target of Call.
	Callee FuncID

	// Targets are branch edges for Jump and Branch.
	Targets []BlockTarget
}
