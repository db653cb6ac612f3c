package rvgen

import (
	"fmt"

	"github.com/light-player/fxc/ir"
)

// funcGen lowers one function. Every SSA value gets a fixed stack slot;
// instructions load their operands into temporaries, compute, and store
// the result back. ra lives at 0(sp), value v at 4+4*v(sp), and a scratch
// area above the value slots stages branch arguments so that edge moves
// never clobber a slot they still need to read.
type funcGen struct {
	a   *asm
	fn  *ir.Function
	mod *ir.Module

	frame  int32
	nvals  int32
	labels int
}

// maxCallArgs is the number of argument registers (a0..a7) the calling
// convention uses. maxCallRets mirrors a0/a1 on the return path.
const (
	maxCallArgs = 8
	maxCallRets = 2
)

func (g *funcGen) emit() error {
	fn := g.fn
	if len(fn.Sig.Params) > maxCallArgs {
		return fmt.Errorf("rvgen: %s: %d parameters, max %d", fn.Name, len(fn.Sig.Params), maxCallArgs)
	}
	if len(fn.Sig.Results) > maxCallRets {
		return fmt.Errorf("rvgen: %s: %d results, max %d", fn.Name, len(fn.Sig.Results), maxCallRets)
	}

	g.nvals = int32(fn.NumValues())
	scratch := int32(0)
	for bi := range fn.Blocks {
		for _, instr := range fn.Blocks[bi].Instrs {
			for _, tgt := range instr.Targets {
				if n := int32(len(tgt.Args)); n > scratch {
					scratch = n
				}
			}
		}
	}
	raw := 4 + 4*(g.nvals+scratch)
	g.frame = (raw + 15) &^ 15
	if g.frame > maxFrame {
		return fmt.Errorf("rvgen: %s: frame %d bytes exceeds %d", fn.Name, g.frame, maxFrame)
	}

	a := g.a
	a.label(g.fnLabel(fn.ID))
	a.addi(sp, sp, -g.frame)
	a.sw(ra, sp, 0)
	entry := fn.Entry()
	for i, v := range entry.Params {
		a.sw(a0+uint32(i), sp, g.slot(v))
	}

	for _, id := range fn.Layout {
		blk := fn.Block(id)
		a.label(g.blockLabel(id))
		for _, instr := range blk.Instrs {
			if err := g.instr(&instr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *funcGen) fnLabel(id ir.FuncID) string {
	return "fn_" + g.mod.Function(id).Name
}

func (g *funcGen) blockLabel(id ir.BlockID) string {
	return fmt.Sprintf("%s_b%d", g.fn.Name, id)
}

// local returns a fresh label for intra-instruction control flow.
func (g *funcGen) local() string {
	g.labels++
	return fmt.Sprintf("%s_l%d", g.fn.Name, g.labels)
}

func (g *funcGen) slot(v ir.Value) int32 { return 4 + 4*int32(v) }

// scratchSlot addresses the edge-move staging area above the value slots.
func (g *funcGen) scratchSlot(i int) int32 { return 4 + 4*(g.nvals+int32(i)) }

func (g *funcGen) load(reg uint32, v ir.Value)  { g.a.lw(reg, sp, g.slot(v)) }
func (g *funcGen) store(reg uint32, v ir.Value) { g.a.sw(reg, sp, g.slot(v)) }

func (g *funcGen) instr(in *ir.Instruction) error {
	a := g.a
	switch in.Op {
	case ir.OpIconst, ir.OpBconst:
		a.li(t0, int32(in.Imm))
		g.store(t0, in.Rets[0])

	case ir.OpIadd, ir.OpIsub, ir.OpImul, ir.OpIdiv:
		g.load(t0, in.Args[0])
		g.load(t1, in.Args[1])
		switch in.Op {
		case ir.OpIadd:
			a.add(t0, t0, t1)
		case ir.OpIsub:
			a.sub(t0, t0, t1)
		case ir.OpImul:
			a.mul(t0, t0, t1)
		case ir.OpIdiv:
			a.div(t0, t0, t1)
		}
		g.store(t0, in.Rets[0])

	case ir.OpImin, ir.OpImax:
		g.load(t0, in.Args[0])
		g.load(t1, in.Args[1])
		done := g.local()
		if in.Op == ir.OpImin {
			a.blt(t0, t1, done)
		} else {
			a.blt(t1, t0, done)
		}
		a.mv(t0, t1)
		a.label(done)
		g.store(t0, in.Rets[0])

	case ir.OpFixMul:
		// (int64(a) * int64(b)) >> 16, truncated to 32 bits: the top
		// 16 bits of the low product word joined with the bottom 16 of
		// the high word.
		g.load(t0, in.Args[0])
		g.load(t1, in.Args[1])
		a.mul(t2, t0, t1)
		a.mulh(t3, t0, t1)
		a.srli(t2, t2, 16)
		a.slli(t3, t3, 16)
		a.or(t0, t2, t3)
		g.store(t0, in.Rets[0])

	case ir.OpFixDiv:
		g.load(a0, in.Args[0])
		g.load(a1, in.Args[1])
		a.call("__fixdiv")
		g.store(a0, in.Rets[0])

	case ir.OpIcmp:
		g.load(t0, in.Args[0])
		g.load(t1, in.Args[1])
		g.icmp(in.IntCond)
		g.store(t0, in.Rets[0])

	case ir.OpSelect:
		g.load(t0, in.Args[0])
		g.load(t1, in.Args[1])
		g.load(t2, in.Args[2])
		done := g.local()
		a.bnez(t0, done)
		a.mv(t1, t2)
		a.label(done)
		g.store(t1, in.Rets[0])

	case ir.OpBoolToInt:
		g.load(t0, in.Args[0])
		g.store(t0, in.Rets[0])

	case ir.OpIshl:
		g.load(t0, in.Args[0])
		a.slli(t0, t0, uint32(in.Imm))
		g.store(t0, in.Rets[0])

	case ir.OpStore:
		g.load(t0, in.Args[0])
		g.load(t1, in.Args[1])
		a.sw(t1, t0, int32(in.Imm))

	case ir.OpLoad:
		g.load(t0, in.Args[0])
		a.lw(t0, t0, int32(in.Imm))
		g.store(t0, in.Rets[0])

	case ir.OpCall:
		if len(in.Args) > maxCallArgs {
			return fmt.Errorf("rvgen: %s: call with %d arguments, max %d", g.fn.Name, len(in.Args), maxCallArgs)
		}
		if len(in.Rets) > maxCallRets {
			return fmt.Errorf("rvgen: %s: call with %d results, max %d", g.fn.Name, len(in.Rets), maxCallRets)
		}
		for i, arg := range in.Args {
			g.load(a0+uint32(i), arg)
		}
		a.call(g.fnLabel(in.Callee))
		for i, ret := range in.Rets {
			g.store(a0+uint32(i), ret)
		}

	case ir.OpJump:
		g.edge(&in.Targets[0])
		a.j(g.blockLabel(in.Targets[0].Block))

	case ir.OpBranch:
		g.load(t0, in.Args[0])
		els := g.local()
		a.beqz(t0, els)
		g.edge(&in.Targets[0])
		a.j(g.blockLabel(in.Targets[0].Block))
		a.label(els)
		g.edge(&in.Targets[1])
		a.j(g.blockLabel(in.Targets[1].Block))

	case ir.OpReturn:
		for i, v := range in.Args {
			g.load(a0+uint32(i), v)
		}
		a.lw(ra, sp, 0)
		a.addi(sp, sp, g.frame)
		a.ret()

	default:
		return fmt.Errorf("rvgen: %s: no encoding for %s", g.fn.Name, in.Op)
	}
	return nil
}

// icmp materializes cond(t0, t1) as 0/1 in t0.
func (g *funcGen) icmp(cond ir.IntCond) {
	a := g.a
	switch cond {
	case ir.IntEq:
		a.xor(t0, t0, t1)
		a.seqz(t0, t0)
	case ir.IntNe:
		a.xor(t0, t0, t1)
		a.snez(t0, t0)
	case ir.IntSlt:
		a.slt(t0, t0, t1)
	case ir.IntSge:
		a.slt(t0, t0, t1)
		a.xori(t0, t0, 1)
	case ir.IntSgt:
		a.slt(t0, t1, t0)
	case ir.IntSle:
		a.slt(t0, t1, t0)
		a.xori(t0, t0, 1)
	case ir.IntUlt:
		a.sltu(t0, t0, t1)
	case ir.IntUge:
		a.sltu(t0, t0, t1)
		a.xori(t0, t0, 1)
	case ir.IntUgt:
		a.sltu(t0, t1, t0)
	case ir.IntUle:
		a.sltu(t0, t1, t0)
		a.xori(t0, t0, 1)
	}
}

// edge performs the parallel move binding branch arguments to the target
// block's parameters: all sources are staged into scratch slots before
// any parameter slot is written, so a parameter that is also a source
// keeps its old value until everything is read.
func (g *funcGen) edge(tgt *ir.BlockTarget) {
	a := g.a
	params := g.fn.Block(tgt.Block).Params
	for i, arg := range tgt.Args {
		g.load(t0, arg)
		a.sw(t0, sp, g.scratchSlot(i))
	}
	for i := range tgt.Args {
		a.lw(t0, sp, g.scratchSlot(i))
		g.store(t0, params[i])
	}
}
