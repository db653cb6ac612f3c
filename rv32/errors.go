package rv32

import "fmt"

// TrapCode identifies the hardware-level fault an emulated call hit.
type TrapCode uint8

const (
	// TrapMisalignedLoad / TrapMisalignedStore are accesses not aligned
	// to the access width.
	TrapMisalignedLoad TrapCode = iota
	TrapMisalignedStore

	// TrapOutOfBounds is an access outside the configured memory.
	TrapOutOfBounds

	// TrapUnknownOpcode is an instruction the decoder does not know.
	TrapUnknownOpcode

	// TrapBreakpoint is an EBREAK.
	TrapBreakpoint

	// TrapBadEcall is an ECALL with an unknown service number.
	TrapBadEcall
)

// String returns the trap name.
func (c TrapCode) String() string {
	switch c {
	case TrapMisalignedLoad:
		return "misaligned load"
	case TrapMisalignedStore:
		return "misaligned store"
	case TrapOutOfBounds:
		return "out-of-bounds access"
	case TrapUnknownOpcode:
		return "unknown opcode"
	case TrapBreakpoint:
		return "breakpoint"
	case TrapBadEcall:
		return "bad ecall"
	default:
		return "unknown trap"
	}
}

// TrapError is an emulator-detected fault. It carries the faulting PC,
// the faulting address when meaningful, and a register snapshot, enough
// to attribute blame without crashing the host.
type TrapError struct {
	Code TrapCode
	PC   uint32
	Addr uint32
	Regs [32]uint32
}

// Error implements the error interface.
func (e *TrapError) Error() string {
	return fmt.Sprintf("rv32: trap %s at pc=%#x addr=%#x", e.Code, e.PC, e.Addr)
}

// PanicError is the guest program's own panic handler crossing the
// host/guest boundary. It propagates as an ordinary error value, not an
// unwind: the host keeps running other shaders after one fails.
type PanicError struct {
	Message string
	File    string
	Line    int
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("rv32: guest panic: %s (%s:%d)", e.Message, e.File, e.Line)
	}
	return fmt.Sprintf("rv32: guest panic: %s", e.Message)
}

// LimitError reports an exceeded instruction budget. It is distinct from
// a trap: the program is pathological or non-terminating, not faulting,
// and retrying will not help.
type LimitError struct {
	Limit uint64
	PC    uint32
}

// Error implements the error interface.
func (e *LimitError) Error() string {
	return fmt.Sprintf("rv32: instruction limit %d exceeded at pc=%#x", e.Limit, e.PC)
}
