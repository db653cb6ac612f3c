package ir

import "math"

// Builder constructs one Function block by block. It is a thin layer over
// Function: it allocates result values, appends instructions to the
// current block and enforces nothing — Validate checks the result.
type Builder struct {
	fn  *Function
	cur BlockID
}

// NewFunctionBuilder returns a builder for a fresh function. An entry
// block with one parameter per signature slot is created and selected.
func NewFunctionBuilder(name string, sig Signature) *Builder {
	fn := &Function{Name: name, ID: FuncNone, Sig: sig}
	kinds := make([]Kind, len(sig.Params))
	for i, p := range sig.Params {
		if p.Role == RoleOutBuffer {
			kinds[i] = KindUInt32
		} else {
			kinds[i] = p.Kind
		}
	}
	b := &Builder{fn: fn}
	b.cur = fn.AddBlock(kinds...)
	return b
}

// Func returns the function under construction.
func (b *Builder) Func() *Function { return b.fn }

// AddBlock creates a new block with the given parameter kinds and returns
// its entity id. The current block is unchanged.
func (b *Builder) AddBlock(paramKinds ...Kind) BlockID {
	return b.fn.AddBlock(paramKinds...)
}

// SwitchTo makes id the insertion target for subsequent instructions.
func (b *Builder) SwitchTo(id BlockID) { b.cur = id }

// CurrentBlock returns the insertion target.
func (b *Builder) CurrentBlock() BlockID { return b.cur }

// BlockParams returns the parameter values of a block.
func (b *Builder) BlockParams(id BlockID) []Value {
	return b.fn.Blocks[id].Params
}

func (b *Builder) emit(ins Instruction) {
	blk := &b.fn.Blocks[b.cur]
	blk.Instrs = append(blk.Instrs, ins)
}

func (b *Builder) emit1(ins Instruction, k Kind) Value {
	v := b.fn.NewValue(k)
	ins.Rets = []Value{v}
	b.emit(ins)
	return v
}

// Iconst emits a signed 32-bit integer constant.
func (b *Builder) Iconst(v int32) Value {
	return b.emit1(Instruction{Op: OpIconst, Imm: int64(v)}, KindInt32)
}

// Fconst emits a 32-bit float constant.
func (b *Builder) Fconst(f float32) Value {
	return b.emit1(Instruction{Op: OpFconst, Imm: int64(math.Float32bits(f))}, KindFloat32)
}

// Bconst emits a boolean constant.
func (b *Builder) Bconst(v bool) Value {
	imm := int64(0)
	if v {
		imm = 1
	}
	return b.emit1(Instruction{Op: OpBconst, Imm: imm}, KindBool8)
}

// Binary emits a two-operand arithmetic instruction. The result kind
// follows the opcode class: float ops yield Float32, the rest Int32.
func (b *Builder) Binary(op Opcode, x, y Value) Value {
	k := KindInt32
	switch op {
	case OpFadd, OpFsub, OpFmul, OpFdiv, OpFmin, OpFmax:
		k = KindFloat32
	}
	return b.emit1(Instruction{Op: op, Args: []Value{x, y}}, k)
}

// Unary emits a one-operand instruction.
func (b *Builder) Unary(op Opcode, x Value) Value {
	k := KindInt32
	switch op {
	case OpFneg, OpFsqrt, OpBoolToFloat:
		k = KindFloat32
	}
	return b.emit1(Instruction{Op: op, Args: []Value{x}}, k)
}

// Ishl emits a left shift by a constant bit count.
func (b *Builder) Ishl(x Value, bits uint8) Value {
	return b.emit1(Instruction{Op: OpIshl, Args: []Value{x}, Imm: int64(bits)}, KindInt32)
}

// Icmp emits an integer comparison producing a Bool8.
func (b *Builder) Icmp(cond IntCond, x, y Value) Value {
	return b.emit1(Instruction{Op: OpIcmp, IntCond: cond, Args: []Value{x, y}}, KindBool8)
}

// Fcmp emits a float comparison producing a Bool8.
func (b *Builder) Fcmp(cond FloatCond, x, y Value) Value {
	return b.emit1(Instruction{Op: OpFcmp, FloatCond: cond, Args: []Value{x, y}}, KindBool8)
}

// Select emits a branch-free choice: cond nonzero picks x, else y.
func (b *Builder) Select(cond, x, y Value) Value {
	return b.emit1(Instruction{Op: OpSelect, Args: []Value{cond, x, y}}, b.fn.ValueKind(x))
}

// Call emits a call to callee. resultKinds drive how many values the call
// defines and of what kind.
func (b *Builder) Call(callee FuncID, resultKinds []Kind, args ...Value) []Value {
	ins := Instruction{Op: OpCall, Callee: callee, Args: args}
	rets := make([]Value, len(resultKinds))
	for i, k := range resultKinds {
		rets[i] = b.fn.NewValue(k)
	}
	ins.Rets = rets
	b.emit(ins)
	return rets
}

// Store emits a write of val to ptr+off.
func (b *Builder) Store(ptr, val Value, off int32) {
	b.emit(Instruction{Op: OpStore, Args: []Value{ptr, val}, Imm: int64(off)})
}

// Load emits a read of kind k from ptr+off.
func (b *Builder) Load(k Kind, ptr Value, off int32) Value {
	return b.emit1(Instruction{Op: OpLoad, Args: []Value{ptr}, Imm: int64(off)}, k)
}

// Jump emits an unconditional branch carrying args to the target's
// parameters.
func (b *Builder) Jump(target BlockID, args ...Value) {
	b.emit(Instruction{Op: OpJump, Targets: []BlockTarget{{Block: target, Args: args}}})
}

// Branch emits a conditional branch: cond nonzero goes to then, else to
// els, each edge carrying its own argument list.
func (b *Builder) Branch(cond Value, then BlockID, thenArgs []Value, els BlockID, elsArgs []Value) {
	b.emit(Instruction{
		Op:   OpBranch,
		Args: []Value{cond},
		Targets: []BlockTarget{
			{Block: then, Args: thenArgs},
			{Block: els, Args: elsArgs},
		},
	})
}

// Return emits a function return.
func (b *Builder) Return(vals ...Value) {
	b.emit(Instruction{Op: OpReturn, Args: vals})
}
