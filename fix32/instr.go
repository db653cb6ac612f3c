package fix32

import (
	"math"

	"github.com/light-player/fxc/diag"
	"github.com/light-player/fxc/fixed"
	"github.com/light-player/fxc/ir"
)

// transform drives the conversion of one function body. SSA numbering and
// block layout are sequential dependencies, so a single body is converted
// strictly in order.
type transform struct {
	ctx    *Context
	old    *ir.Function
	new    *ir.Function
	vmap   *valueMap
	blocks *blockBuilder
	calls  *callState
	cur    *ir.Block
}

func newTransform(ctx *Context, old, new *ir.Function) *transform {
	vmap := newValueMap(old.Name)
	return &transform{
		ctx:    ctx,
		old:    old,
		new:    new,
		vmap:   vmap,
		blocks: newBlockBuilder(old, new, vmap),
		calls:  newCallState(ctx, old.Name),
	}
}

func (t *transform) run() error {
	if err := t.blocks.build(); err != nil {
		return err
	}
	for _, oldID := range t.old.Layout {
		// A block's own parameters must be mapped before its body
		// refers to them, whether or not a predecessor has been
		// processed yet.
		if err := t.blocks.ensureParams(oldID); err != nil {
			return err
		}
		newID, err := t.blocks.bmap.resolve(oldID)
		if err != nil {
			return err
		}
		t.cur = t.new.Block(newID)
		oldBlk := t.old.Block(oldID)
		for i := range oldBlk.Instrs {
			if err := t.convert(&oldBlk.Instrs[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *transform) emit(ins ir.Instruction) {
	t.cur.Instrs = append(t.cur.Instrs, ins)
}

func (t *transform) emit1(ins ir.Instruction, k ir.Kind) ir.Value {
	v := t.new.NewValue(k)
	ins.Rets = []ir.Value{v}
	t.emit(ins)
	return v
}

// bindRets allocates the new results of an instruction, kind-converted,
// and records them in the value map before returning, so later consumers
// resolve them.
func (t *transform) bindRets(old []ir.Value) ([]ir.Value, error) {
	if len(old) == 0 {
		return nil, nil
	}
	rets := make([]ir.Value, len(old))
	for i, r := range old {
		rets[i] = t.new.NewValue(ConvertKind(t.old.ValueKind(r)))
		if err := t.vmap.bind(r, rets[i]); err != nil {
			return nil, err
		}
	}
	return rets, nil
}

// passthrough converts an instruction that keeps its shape: operands are
// remapped, results rebound, opcode possibly substituted. Identical Q16.16
// scale on both operands makes add and sub exact as plain integer ops.
func (t *transform) passthrough(ins *ir.Instruction, op ir.Opcode) error {
	args, err := t.vmap.resolveAll(ins.Args)
	if err != nil {
		return err
	}
	rets, err := t.bindRets(ins.Rets)
	if err != nil {
		return err
	}
	t.emit(ir.Instruction{
		Op:      op,
		Args:    args,
		Rets:    rets,
		Imm:     ins.Imm,
		IntCond: ins.IntCond,
	})
	return nil
}

// intCondFor maps a float condition to its integer counterpart. The
// equal/not-equal/less/less-or-equal/greater/greater-or-equal conditions
// map 1:1. Ordered/unordered (NaN-sensitive) variants have no fixed-point
// counterpart, since nothing represents NaN; each is approximated by its
// nearest ordered condition. This is a known precision gap of the
// transform, kept deliberately rather than papered over.
func intCondFor(c ir.FloatCond) ir.IntCond {
	switch c.Ordered() {
	case ir.FloatOeq:
		return ir.IntEq
	case ir.FloatOne:
		return ir.IntNe
	case ir.FloatOlt:
		return ir.IntSlt
	case ir.FloatOle:
		return ir.IntSle
	case ir.FloatOgt:
		return ir.IntSgt
	default:
		return ir.IntSge
	}
}

func (t *transform) convert(ins *ir.Instruction) error {
	switch ins.Op {
	case ir.OpIconst, ir.OpBconst, ir.OpIadd, ir.OpIsub, ir.OpImul, ir.OpIdiv,
		ir.OpImin, ir.OpImax, ir.OpFixMul, ir.OpFixDiv, ir.OpIcmp, ir.OpSelect,
		ir.OpBoolToInt, ir.OpIshl, ir.OpStore, ir.OpLoad:
		// Integer-domain instructions keep their semantics.
		return t.passthrough(ins, ins.Op)

	case ir.OpFconst:
		f := math.Float32frombits(uint32(ins.Imm))
		rets, err := t.bindRets(ins.Rets)
		if err != nil {
			return err
		}
		t.emit(ir.Instruction{
			Op:   ir.OpIconst,
			Imm:  int64(fixed.FromFloat32(f)),
			Rets: rets,
		})
		return nil

	case ir.OpFadd:
		return t.passthrough(ins, ir.OpIadd)
	case ir.OpFsub:
		return t.passthrough(ins, ir.OpIsub)
	case ir.OpFmul:
		// FixMul widens to 64 bits, multiplies and shifts right 16,
		// so the doubled fractional scale cannot overflow.
		return t.passthrough(ins, ir.OpFixMul)
	case ir.OpFdiv:
		// FixDiv pre-shifts the widened dividend left 16 and
		// saturates on a zero divisor instead of trapping.
		return t.passthrough(ins, ir.OpFixDiv)

	case ir.OpFneg:
		x, err := t.vmap.resolve(ins.Args[0])
		if err != nil {
			return err
		}
		zero := t.emit1(ir.Instruction{Op: ir.OpIconst, Imm: 0}, ir.KindInt32)
		rets, err := t.bindRets(ins.Rets)
		if err != nil {
			return err
		}
		t.emit(ir.Instruction{Op: ir.OpIsub, Args: []ir.Value{zero, x}, Rets: rets})
		return nil

	case ir.OpFmin, ir.OpFmax:
		// Fixed-point values share the signed-integer total order,
		// so min/max become an exact, branch-free compare + select.
		args, err := t.vmap.resolveAll(ins.Args)
		if err != nil {
			return err
		}
		cond := t.emit1(ir.Instruction{
			Op:      ir.OpIcmp,
			IntCond: ir.IntSlt,
			Args:    []ir.Value{args[0], args[1]},
		}, ir.KindBool8)
		rets, err := t.bindRets(ins.Rets)
		if err != nil {
			return err
		}
		sel := []ir.Value{cond, args[0], args[1]}
		if ins.Op == ir.OpFmax {
			sel = []ir.Value{cond, args[1], args[0]}
		}
		t.emit(ir.Instruction{Op: ir.OpSelect, Args: sel, Rets: rets})
		return nil

	case ir.OpFcmp:
		args, err := t.vmap.resolveAll(ins.Args)
		if err != nil {
			return err
		}
		rets, err := t.bindRets(ins.Rets)
		if err != nil {
			return err
		}
		t.emit(ir.Instruction{
			Op:      ir.OpIcmp,
			IntCond: intCondFor(ins.FloatCond),
			Args:    args,
			Rets:    rets,
		})
		return nil

	case ir.OpBoolToFloat:
		// The 0/1 boolean is widened and multiplied by 65536 so it
		// reads as 0.0/1.0 wherever the source language consumed a
		// boolean as a number.
		x, err := t.vmap.resolve(ins.Args[0])
		if err != nil {
			return err
		}
		wide := t.emit1(ir.Instruction{Op: ir.OpBoolToInt, Args: []ir.Value{x}}, ir.KindInt32)
		rets, err := t.bindRets(ins.Rets)
		if err != nil {
			return err
		}
		t.emit(ir.Instruction{Op: ir.OpIshl, Args: []ir.Value{wide}, Imm: 16, Rets: rets})
		return nil

	case ir.OpCall:
		ref, err := t.calls.resolve(ins.Callee)
		if err != nil {
			return err
		}
		args, err := t.vmap.resolveAll(ins.Args)
		if err != nil {
			return err
		}
		rets, err := t.bindRets(ins.Rets)
		if err != nil {
			return err
		}
		t.emit(ir.Instruction{Op: ir.OpCall, Callee: ref.id, Args: args, Rets: rets})
		return nil

	case ir.OpJump, ir.OpBranch:
		args, err := t.vmap.resolveAll(ins.Args)
		if err != nil {
			return err
		}
		targets := make([]ir.BlockTarget, len(ins.Targets))
		for i, tgt := range ins.Targets {
			// Target parameters must exist before any predecessor
			// can pass arguments; the first edge to reach a block
			// creates them from the old block's parameter list.
			if err := t.blocks.ensureParams(tgt.Block); err != nil {
				return err
			}
			newBlk, err := t.blocks.bmap.resolve(tgt.Block)
			if err != nil {
				return err
			}
			tArgs, err := t.vmap.resolveAll(tgt.Args)
			if err != nil {
				return err
			}
			targets[i] = ir.BlockTarget{Block: newBlk, Args: tArgs}
		}
		t.emit(ir.Instruction{Op: ins.Op, Args: args, Targets: targets})
		return nil

	case ir.OpReturn:
		args, err := t.vmap.resolveAll(ins.Args)
		if err != nil {
			return err
		}
		t.emit(ir.Instruction{Op: ir.OpReturn, Args: args})
		return nil

	default:
		// No conversion rule. The whole module transform aborts; a
		// partially transformed function is never returned.
		return diag.Errorf(diag.CodeUnsupported, nil,
			"%s: no fixed-point conversion for %s", t.old.Name, ins.Op)
	}
}
