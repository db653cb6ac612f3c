// Package hostvm executes IR modules natively on the host. A module is
// compiled once — each instruction becomes a Go closure over preresolved
// register indexes — and then called many times, which is the fast
// local-iteration path. Running the untransformed module gives the
// float-math baseline; running the fix32 output gives the host half of
// the cross-check against the emulator backend.
package hostvm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/light-player/fxc/exec"
	"github.com/light-player/fxc/ir"
)

// outBufSize is the per-call scratch buffer for output-buffer results.
// A 4x4 float matrix is the largest multi-component result.
const outBufSize = 64

// maxSteps bounds one call so a non-terminating shader fails instead of
// hanging the harness.
const maxSteps = 10_000_000

// maxCallDepth bounds guest recursion.
const maxCallDepth = 256

// Program is a module compiled for host execution. It implements
// exec.Executable.
type Program struct {
	mod  *ir.Module
	mode exec.RunMode
	fns  []*compiledFunc
}

// Compile prepares every function of the module for host execution.
func Compile(mod *ir.Module, mode exec.RunMode) (*Program, error) {
	if errs := ir.Validate(mod); len(errs) > 0 {
		return nil, fmt.Errorf("hostvm: invalid module: %s", errs[0])
	}
	p := &Program{mod: mod, mode: mode}
	for _, fn := range mod.Functions {
		cf, err := p.compileFunc(fn)
		if err != nil {
			return nil, err
		}
		p.fns = append(p.fns, cf)
	}
	return p, nil
}

// Mode implements exec.Executable.
func (p *Program) Mode() exec.RunMode { return p.mode }

// Close implements exec.Executable. Host programs hold no resources.
func (p *Program) Close() error { return nil }

// machine is the per-call mutable state.
type machine struct {
	prog  *Program
	steps int
	depth int
	buf   [outBufSize]byte // output-buffer backing store, address 0
}

func (m *machine) tick() error {
	m.steps++
	if m.steps > maxSteps {
		return fmt.Errorf("hostvm: step budget exceeded")
	}
	return nil
}

// frame is one function invocation: a flat register file indexed by
// ir.Value.
type frame struct {
	regs []uint32
	ret  []uint32
}

// step executes one compiled instruction against a frame.
type step func(m *machine, fr *frame) error

// edge is a compiled branch target: where to go and which registers feed
// the target block's parameters.
type edge struct {
	block  ir.BlockID
	args   []ir.Value
	params []ir.Value
}

// terminator decides the next block of a frame. next is BlockNone on
// return.
type terminator func(m *machine, fr *frame) (next ir.BlockID, err error)

type compiledBlock struct {
	steps []step
	term  terminator
}

type compiledFunc struct {
	fn     *ir.Function
	blocks []compiledBlock // indexed by entity id
	entry  ir.BlockID
}

func (p *Program) run(cf *compiledFunc, args []uint32) ([]uint32, error) {
	m := &machine{prog: p}
	return p.invoke(m, cf, args)
}

func (p *Program) invoke(m *machine, cf *compiledFunc, args []uint32) ([]uint32, error) {
	m.depth++
	if m.depth > maxCallDepth {
		return nil, fmt.Errorf("hostvm: call depth exceeded in %s", cf.fn.Name)
	}
	defer func() { m.depth-- }()

	fr := &frame{regs: make([]uint32, cf.fn.NumValues())}
	entry := cf.fn.Entry()
	if len(args) != len(entry.Params) {
		return nil, fmt.Errorf("hostvm: %s wants %d arguments, got %d", cf.fn.Name, len(entry.Params), len(args))
	}
	for i, pv := range entry.Params {
		fr.regs[pv] = args[i]
	}

	cur := cf.entry
	for {
		blk := &cf.blocks[cur]
		for _, st := range blk.steps {
			if err := st(m, fr); err != nil {
				return nil, err
			}
		}
		next, err := blk.term(m, fr)
		if err != nil {
			return nil, err
		}
		if next == ir.BlockNone {
			return fr.ret, nil
		}
		cur = next
	}
}

// loadWord / storeWord access the output-buffer space. Addresses are
// byte offsets into the per-call buffer; negative immediate offsets show
// up here as huge unsigned values, so the bound must be checked without
// an addition that could wrap.
func (m *machine) loadWord(addr uint32) (uint32, error) {
	if addr > outBufSize-4 {
		return 0, fmt.Errorf("hostvm: load outside output buffer at %#x", addr)
	}
	return binary.LittleEndian.Uint32(m.buf[addr:]), nil
}

func (m *machine) storeWord(addr, w uint32) error {
	if addr > outBufSize-4 {
		return fmt.Errorf("hostvm: store outside output buffer at %#x", addr)
	}
	binary.LittleEndian.PutUint32(m.buf[addr:], w)
	return nil
}

func f32(w uint32) float32   { return math.Float32frombits(w) }
func fbits(f float32) uint32 { return math.Float32bits(f) }

func fixMul(a, b uint32) uint32 {
	return uint32((int64(int32(a)) * int64(int32(b))) >> 16)
}

func fixDiv(a, b uint32) uint32 {
	x, y := int32(a), int32(b)
	if y == 0 {
		// Saturate by dividend sign; 0x80000000 is the MinInt32 pattern.
		if x >= 0 {
			return math.MaxInt32
		}
		return 0x80000000
	}
	return uint32((int64(x) << 16) / int64(y))
}

// idiv follows the target's division semantics: dividing by zero yields
// all bits set and MinInt32/-1 yields MinInt32, matching RV32IM DIV, so
// the two backends agree on degenerate integer divides.
func idiv(a, b uint32) uint32 {
	x, y := int32(a), int32(b)
	if y == 0 {
		return ^uint32(0)
	}
	if x == math.MinInt32 && y == -1 {
		return 0x80000000
	}
	return uint32(x / y)
}

func icmp(cond ir.IntCond, a, b uint32) uint32 {
	sa, sb := int32(a), int32(b)
	var r bool
	switch cond {
	case ir.IntEq:
		r = a == b
	case ir.IntNe:
		r = a != b
	case ir.IntSlt:
		r = sa < sb
	case ir.IntSle:
		r = sa <= sb
	case ir.IntSgt:
		r = sa > sb
	case ir.IntSge:
		r = sa >= sb
	case ir.IntUlt:
		r = a < b
	case ir.IntUle:
		r = a <= b
	case ir.IntUgt:
		r = a > b
	case ir.IntUge:
		r = a >= b
	}
	if r {
		return 1
	}
	return 0
}

func fcmp(cond ir.FloatCond, a, b uint32) uint32 {
	x, y := f32(a), f32(b)
	var r bool
	if math.IsNaN(float64(x)) || math.IsNaN(float64(y)) {
		// Ordered conditions are false on NaN, unordered ones true.
		r = cond != cond.Ordered()
	} else {
		switch cond.Ordered() {
		case ir.FloatOeq:
			r = x == y
		case ir.FloatOne:
			r = x != y
		case ir.FloatOlt:
			r = x < y
		case ir.FloatOle:
			r = x <= y
		case ir.FloatOgt:
			r = x > y
		case ir.FloatOge:
			r = x >= y
		}
	}
	if r {
		return 1
	}
	return 0
}
