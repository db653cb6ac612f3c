package rvgen

import (
	"encoding/binary"
	"fmt"

	"github.com/light-player/fxc/ir"
)

// Image is an assembled module: position-independent words (all control
// flow is pc-relative) plus per-function entry offsets.
type Image struct {
	Code    []byte
	Entries map[string]uint32 // byte offset of each function
	mod     *ir.Module
}

// maxFrame keeps every value slot reachable with a 12-bit offset.
const maxFrame = 2032

// Generate lowers every function of an integer-only module. Float
// opcodes have no encoding on this target; modules must go through the
// fix32 transform first.
func Generate(mod *ir.Module) (*Image, error) {
	if errs := ir.Validate(mod); len(errs) > 0 {
		return nil, fmt.Errorf("rvgen: invalid module: %s", errs[0])
	}
	a := newAsm()

	// Exit stub: the call harness points ra here, so a top-level return
	// lands in a clean halt with the result still in a0.
	a.label("__exit")
	a.li(a7, exitService)
	a.ecall()
	emitFixdiv(a)

	entries := make(map[string]uint32)
	for _, fn := range mod.Functions {
		entries[fn.Name] = uint32(a.pc())
		g := &funcGen{a: a, fn: fn, mod: mod}
		if err := g.emit(); err != nil {
			return nil, err
		}
	}

	words, err := a.finish()
	if err != nil {
		return nil, err
	}
	code := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(code[i*4:], w)
	}
	return &Image{Code: code, Entries: entries, mod: mod}, nil
}

const exitService = 93

// emitFixdiv emits the shared Q16.16 division routine:
// a0 = (int64(a0) << 16) / int64(a1), saturating on a zero divisor.
// The 48-bit dividend forces a software 64-by-32 divide; a restoring
// shift-subtract loop over the magnitudes keeps it exact, then the sign
// is fixed up, matching 64-bit truncating division. Truncation to the
// low 32 quotient bits mirrors the host backend's behavior on overflow.
func emitFixdiv(a *asm) {
	a.label("__fixdiv")
	// Zero divisor: saturate by dividend sign, never trap.
	a.bnez(a1, "__fixdiv_go")
	a.li(t0, 0x7fffffff)
	a.bge(a0, x0, "__fixdiv_sat")
	a.li(t0, -0x80000000)
	a.label("__fixdiv_sat")
	a.mv(a0, t0)
	a.ret()

	a.label("__fixdiv_go")
	a.xor(t3, a0, a1) // bit 31 = result sign
	a.bge(a0, x0, "__fixdiv_xpos")
	a.sub(a0, x0, a0)
	a.label("__fixdiv_xpos")
	a.bge(a1, x0, "__fixdiv_ypos")
	a.sub(a1, x0, a1)
	a.label("__fixdiv_ypos")

	// Dividend hi:lo = |x| << 16; rem in t2, loop counter in t4.
	a.srli(t0, a0, 16)
	a.slli(t1, a0, 16)
	a.li(t2, 0)
	a.li(t4, 64)
	a.label("__fixdiv_loop")
	a.srli(t5, t0, 31)
	a.slli(t2, t2, 1)
	a.or(t2, t2, t5) // rem = rem<<1 | hi>>31
	a.srli(t5, t1, 31)
	a.slli(t0, t0, 1)
	a.or(t0, t0, t5) // hi = hi<<1 | lo>>31
	a.slli(t1, t1, 1)
	a.bltu(t2, a1, "__fixdiv_skip")
	a.sub(t2, t2, a1)
	a.ori(t1, t1, 1)
	a.label("__fixdiv_skip")
	a.addi(t4, t4, -1)
	a.bnez(t4, "__fixdiv_loop")

	// Quotient low word is in t1; negate when signs differed.
	a.bge(t3, x0, "__fixdiv_done")
	a.sub(t1, x0, t1)
	a.label("__fixdiv_done")
	a.mv(a0, t1)
	a.ret()
}
