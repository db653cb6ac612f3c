package ir

import "math"

// Kind is the numeric type tag of a value or signature slot.
type Kind uint8

const (
	KindInvalid Kind = iota

	// KindFloat32 is a 32-bit IEEE-754 float.
	KindFloat32

	// KindInt32 is a signed 32-bit integer. It doubles as the container
	// for Q16.16 fixed-point values after the fix32 transform.
	KindInt32

	// KindUInt32 is an unsigned 32-bit integer.
	KindUInt32

	// KindBool8 is a boolean stored as 0 or 1 in a byte-sized slot.
	KindBool8
)

// String returns the textual form used by the IR printer and parser.
func (k Kind) String() string {
	switch k {
	case KindFloat32:
		return "f32"
	case KindInt32:
		return "i32"
	case KindUInt32:
		return "u32"
	case KindBool8:
		return "b8"
	default:
		return "invalid"
	}
}

// ParamRole distinguishes ordinary value parameters from the hidden
// output-buffer pointer used for multi-component results that do not fit
// the return-register convention.
type ParamRole uint8

const (
	// RoleValue is an ordinary by-value parameter.
	RoleValue ParamRole = iota

	// RoleOutBuffer is a pointer to caller-owned memory the function
	// writes a multi-component result into.
	RoleOutBuffer
)

// Param is one slot of a function signature's parameter list.
type Param struct {
	Kind Kind
	Role ParamRole
}

// Signature describes a function's parameter and return kinds, in order.
type Signature struct {
	Params  []Param
	Results []Kind
}

// Equal reports whether two signatures have identical slot lists.
func (s Signature) Equal(o Signature) bool {
	if len(s.Params) != len(o.Params) || len(s.Results) != len(o.Results) {
		return false
	}
	for i, p := range s.Params {
		if p != o.Params[i] {
			return false
		}
	}
	for i, r := range s.Results {
		if r != o.Results[i] {
			return false
		}
	}
	return true
}

// Value identifies an SSA definition site. Each Value is owned by exactly
// one instruction result slot or block-parameter slot.
type Value uint32

// ValueNone is the absent value.
const ValueNone Value = math.MaxUint32

// Valid reports whether v refers to a definition.
func (v Value) Valid() bool { return v != ValueNone }

// FuncID identifies a function within a Module.
type FuncID uint32

// FuncNone is the absent function reference.
const FuncNone FuncID = math.MaxUint32

// BlockID is a block's entity identity: the stable ordinal assigned at
// creation, independent of layout position.
type BlockID uint32

// BlockNone is the absent block reference.
const BlockNone BlockID = math.MaxUint32

// BlockTarget is a branch edge: a destination block plus the arguments
// bound to that block's parameters.
type BlockTarget struct {
	Block BlockID
	Args  []Value
}

// Block is a basic block: parameters, then instructions, the last of which
// must be a terminator.
type Block struct {
	// ID is the entity identity (index into Function.Blocks).
	ID BlockID

	// Params are the values defined by this block's parameter slots.
	Params []Value

	// ParamKinds are the kinds of Params, parallel to it.
	ParamKinds []Kind

	// Instrs is the ordered instruction list.
	Instrs []Instruction
}

// Function is one SSA function: a signature plus blocks in entity order
// and a separate layout order.
type Function struct {
	Name string
	ID   FuncID
	Sig  Signature

	// Blocks is indexed by BlockID (entity order).
	Blocks []Block

	// Layout is the emission order of blocks, which may differ from
	// entity order when the source compiler reordered for fallthrough.
	Layout []BlockID

	// valueKinds is indexed by Value.
	valueKinds []Kind
}

// NumValues returns the number of values defined so far.
func (f *Function) NumValues() int { return len(f.valueKinds) }

// NewValue allocates a fresh value of the given kind.
func (f *Function) NewValue(k Kind) Value {
	v := Value(len(f.valueKinds))
	f.valueKinds = append(f.valueKinds, k)
	return v
}

// ValueKind returns the kind of v, or KindInvalid if v was not allocated
// by this function.
func (f *Function) ValueKind(v Value) Kind {
	if int(v) >= len(f.valueKinds) {
		return KindInvalid
	}
	return f.valueKinds[v]
}

// Block returns the block with the given entity id, or nil.
func (f *Function) Block(id BlockID) *Block {
	if int(id) >= len(f.Blocks) {
		return nil
	}
	return &f.Blocks[id]
}

// Entry returns the entry block: the first block in layout order.
func (f *Function) Entry() *Block {
	if len(f.Layout) == 0 {
		return nil
	}
	return &f.Blocks[f.Layout[0]]
}

// AddBlock creates a new block in entity order and appends it to the
// layout. Callers that need a divergent layout reorder Function.Layout
// afterwards.
func (f *Function) AddBlock(paramKinds ...Kind) BlockID {
	id := BlockID(len(f.Blocks))
	blk := Block{ID: id}
	for _, k := range paramKinds {
		blk.Params = append(blk.Params, f.NewValue(k))
		blk.ParamKinds = append(blk.ParamKinds, k)
	}
	f.Blocks = append(f.Blocks, blk)
	f.Layout = append(f.Layout, id)
	return id
}

// AppendBlockParam appends one parameter slot to an existing block and
// returns the new value. Blocks are append-only: parameters are added by
// index, never through aliased references.
func (f *Function) AppendBlockParam(id BlockID, k Kind) Value {
	blk := &f.Blocks[id]
	v := f.NewValue(k)
	blk.Params = append(blk.Params, v)
	blk.ParamKinds = append(blk.ParamKinds, k)
	return v
}

// Module is an ordered set of functions. FuncID indexes Functions.
type Module struct {
	Functions []*Function
}

// Function returns the function with the given id, or nil.
func (m *Module) Function(id FuncID) *Function {
	if int(id) >= len(m.Functions) {
		return nil
	}
	return m.Functions[id]
}

// FunctionByName returns the first function with the given name, or nil.
func (m *Module) FunctionByName(name string) *Function {
	for _, f := range m.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// AddFunction appends f to the module, assigning its FuncID.
func (m *Module) AddFunction(f *Function) FuncID {
	f.ID = FuncID(len(m.Functions))
	m.Functions = append(m.Functions, f)
	return f.ID
}
