package hostvm

import (
	"fmt"
	"math"

	"github.com/light-player/fxc/ir"
)

func (p *Program) compileFunc(fn *ir.Function) (*compiledFunc, error) {
	cf := &compiledFunc{fn: fn, entry: fn.Entry().ID}
	cf.blocks = make([]compiledBlock, len(fn.Blocks))
	for i := range fn.Blocks {
		blk := &fn.Blocks[i]
		if len(blk.Instrs) == 0 {
			return nil, fmt.Errorf("hostvm: %s block%d is empty", fn.Name, blk.ID)
		}
		var cb compiledBlock
		for j := range blk.Instrs {
			ins := &blk.Instrs[j]
			if ins.Op.IsTerminator() {
				term, err := p.compileTerm(fn, ins)
				if err != nil {
					return nil, err
				}
				cb.term = term
				break
			}
			st, err := p.compileStep(fn, ins)
			if err != nil {
				return nil, err
			}
			cb.steps = append(cb.steps, st)
		}
		cf.blocks[blk.ID] = cb
	}
	return cf, nil
}

// binOp compiles a two-operand instruction down to one closure over the
// resolved register indexes.
func binOp(ins *ir.Instruction, f func(a, b uint32) uint32) step {
	x, y, d := ins.Args[0], ins.Args[1], ins.Rets[0]
	return func(m *machine, fr *frame) error {
		if err := m.tick(); err != nil {
			return err
		}
		fr.regs[d] = f(fr.regs[x], fr.regs[y])
		return nil
	}
}

func unOp(ins *ir.Instruction, f func(a uint32) uint32) step {
	x, d := ins.Args[0], ins.Rets[0]
	return func(m *machine, fr *frame) error {
		if err := m.tick(); err != nil {
			return err
		}
		fr.regs[d] = f(fr.regs[x])
		return nil
	}
}

func (p *Program) compileStep(fn *ir.Function, ins *ir.Instruction) (step, error) {
	switch ins.Op {
	case ir.OpIconst, ir.OpBconst:
		d, w := ins.Rets[0], uint32(int32(ins.Imm))
		return func(m *machine, fr *frame) error {
			fr.regs[d] = w
			return nil
		}, nil
	case ir.OpFconst:
		d, w := ins.Rets[0], uint32(ins.Imm)
		return func(m *machine, fr *frame) error {
			fr.regs[d] = w
			return nil
		}, nil

	case ir.OpIadd:
		return binOp(ins, func(a, b uint32) uint32 { return a + b }), nil
	case ir.OpIsub:
		return binOp(ins, func(a, b uint32) uint32 { return a - b }), nil
	case ir.OpImul:
		return binOp(ins, func(a, b uint32) uint32 { return uint32(int32(a) * int32(b)) }), nil
	case ir.OpIdiv:
		return binOp(ins, idiv), nil
	case ir.OpFixMul:
		return binOp(ins, fixMul), nil
	case ir.OpFixDiv:
		return binOp(ins, fixDiv), nil

	case ir.OpFadd:
		return binOp(ins, func(a, b uint32) uint32 { return fbits(f32(a) + f32(b)) }), nil
	case ir.OpFsub:
		return binOp(ins, func(a, b uint32) uint32 { return fbits(f32(a) - f32(b)) }), nil
	case ir.OpFmul:
		return binOp(ins, func(a, b uint32) uint32 { return fbits(f32(a) * f32(b)) }), nil
	case ir.OpFdiv:
		return binOp(ins, func(a, b uint32) uint32 { return fbits(f32(a) / f32(b)) }), nil
	case ir.OpFneg:
		return unOp(ins, func(a uint32) uint32 { return fbits(-f32(a)) }), nil
	case ir.OpFsqrt:
		return unOp(ins, func(a uint32) uint32 {
			return fbits(float32(math.Sqrt(float64(f32(a)))))
		}), nil

	case ir.OpFmin:
		return binOp(ins, func(a, b uint32) uint32 {
			return fbits(float32(math.Min(float64(f32(a)), float64(f32(b)))))
		}), nil
	case ir.OpFmax:
		return binOp(ins, func(a, b uint32) uint32 {
			return fbits(float32(math.Max(float64(f32(a)), float64(f32(b)))))
		}), nil
	case ir.OpImin:
		return binOp(ins, func(a, b uint32) uint32 {
			if int32(b) < int32(a) {
				return b
			}
			return a
		}), nil
	case ir.OpImax:
		return binOp(ins, func(a, b uint32) uint32 {
			if int32(b) > int32(a) {
				return b
			}
			return a
		}), nil

	case ir.OpIcmp:
		cond := ins.IntCond
		return binOp(ins, func(a, b uint32) uint32 { return icmp(cond, a, b) }), nil
	case ir.OpFcmp:
		cond := ins.FloatCond
		return binOp(ins, func(a, b uint32) uint32 { return fcmp(cond, a, b) }), nil

	case ir.OpSelect:
		c, x, y, d := ins.Args[0], ins.Args[1], ins.Args[2], ins.Rets[0]
		return func(m *machine, fr *frame) error {
			if err := m.tick(); err != nil {
				return err
			}
			if fr.regs[c] != 0 {
				fr.regs[d] = fr.regs[x]
			} else {
				fr.regs[d] = fr.regs[y]
			}
			return nil
		}, nil

	case ir.OpBoolToFloat:
		return unOp(ins, func(a uint32) uint32 {
			if a != 0 {
				return fbits(1)
			}
			return fbits(0)
		}), nil
	case ir.OpBoolToInt:
		return unOp(ins, func(a uint32) uint32 {
			if a != 0 {
				return 1
			}
			return 0
		}), nil
	case ir.OpIshl:
		sh := uint32(ins.Imm) & 31
		return unOp(ins, func(a uint32) uint32 { return a << sh }), nil

	case ir.OpStore:
		ptr, val, off := ins.Args[0], ins.Args[1], uint32(int32(ins.Imm))
		return func(m *machine, fr *frame) error {
			if err := m.tick(); err != nil {
				return err
			}
			return m.storeWord(fr.regs[ptr]+off, fr.regs[val])
		}, nil
	case ir.OpLoad:
		ptr, off, d := ins.Args[0], uint32(int32(ins.Imm)), ins.Rets[0]
		return func(m *machine, fr *frame) error {
			if err := m.tick(); err != nil {
				return err
			}
			w, err := m.loadWord(fr.regs[ptr] + off)
			if err != nil {
				return err
			}
			fr.regs[d] = w
			return nil
		}, nil

	case ir.OpCall:
		callee := ins.Callee
		args := ins.Args
		rets := ins.Rets
		return func(m *machine, fr *frame) error {
			if err := m.tick(); err != nil {
				return err
			}
			words := make([]uint32, len(args))
			for i, a := range args {
				words[i] = fr.regs[a]
			}
			out, err := m.prog.invoke(m, m.prog.fns[callee], words)
			if err != nil {
				return err
			}
			if len(out) != len(rets) {
				return fmt.Errorf("hostvm: call returned %d values, want %d", len(out), len(rets))
			}
			for i, r := range rets {
				fr.regs[r] = out[i]
			}
			return nil
		}, nil

	default:
		return nil, fmt.Errorf("hostvm: cannot compile %s", ins.Op)
	}
}

func compileEdge(fn *ir.Function, t ir.BlockTarget) edge {
	return edge{
		block:  t.Block,
		args:   t.Args,
		params: fn.Blocks[t.Block].Params,
	}
}

// take moves edge arguments into the target block's parameter registers.
// Reading all sources before writing keeps swaps correct when a parameter
// register also feeds the edge.
func (e *edge) take(fr *frame) {
	if len(e.args) == 0 {
		return
	}
	tmp := make([]uint32, len(e.args))
	for i, a := range e.args {
		tmp[i] = fr.regs[a]
	}
	for i, pv := range e.params {
		fr.regs[pv] = tmp[i]
	}
}

func (p *Program) compileTerm(fn *ir.Function, ins *ir.Instruction) (terminator, error) {
	switch ins.Op {
	case ir.OpJump:
		e := compileEdge(fn, ins.Targets[0])
		return func(m *machine, fr *frame) (ir.BlockID, error) {
			if err := m.tick(); err != nil {
				return ir.BlockNone, err
			}
			e.take(fr)
			return e.block, nil
		}, nil
	case ir.OpBranch:
		cond := ins.Args[0]
		then := compileEdge(fn, ins.Targets[0])
		els := compileEdge(fn, ins.Targets[1])
		return func(m *machine, fr *frame) (ir.BlockID, error) {
			if err := m.tick(); err != nil {
				return ir.BlockNone, err
			}
			e := &els
			if fr.regs[cond] != 0 {
				e = &then
			}
			e.take(fr)
			return e.block, nil
		}, nil
	case ir.OpReturn:
		args := ins.Args
		return func(m *machine, fr *frame) (ir.BlockID, error) {
			fr.ret = make([]uint32, len(args))
			for i, a := range args {
				fr.ret[i] = fr.regs[a]
			}
			return ir.BlockNone, nil
		}, nil
	default:
		return nil, fmt.Errorf("hostvm: %s used as terminator", ins.Op)
	}
}
