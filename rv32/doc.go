// Package rv32 is a software RV32IM emulator modelling the LED
// controller target: no hardware float, bounded memory, and a bounded
// instruction budget per call. It is one half of the correctness oracle
// for the fixed-point transform — the other half runs natively on the
// host — so the package carries the introspection surface needed to debug
// divergence: register and memory dumps, an instruction trace ring and a
// disassembler.
//
// A call runs the state machine Running -> Halted | Trapped | Panicked |
// InstructionLimitExceeded. Halted is the only success state; the others
// surface as typed errors, never as process-level crashes, so a caller
// can log one broken shader and keep rendering.
package rv32
