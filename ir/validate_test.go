package ir

import (
	"strings"
	"testing"
)

func validSig() Signature {
	return Signature{
		Params:  []Param{{Kind: KindInt32}},
		Results: []Kind{KindInt32},
	}
}

func TestValidateAcceptsWellFormed(t *testing.T) {
	b := NewFunctionBuilder("ok", validSig())
	p := b.BlockParams(b.CurrentBlock())
	b.Return(b.Binary(OpIadd, p[0], p[0]))
	mod := &Module{}
	mod.AddFunction(b.Func())
	if errs := Validate(mod); len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestValidateBackEdgeParams(t *testing.T) {
	// A back edge passes arguments to a block printed earlier; its
	// parameters must count as definitions everywhere.
	b := NewFunctionBuilder("loop", validSig())
	n := b.BlockParams(b.CurrentBlock())[0]
	loop := b.AddBlock(KindInt32)
	exit := b.AddBlock()
	b.Jump(loop, n)
	b.SwitchTo(loop)
	i := b.BlockParams(loop)[0]
	dec := b.Binary(OpIsub, i, b.Iconst(1))
	b.Branch(b.Icmp(IntSgt, dec, b.Iconst(0)), loop, []Value{dec}, exit, nil)
	b.SwitchTo(exit)
	b.Return(b.Iconst(0))
	mod := &Module{}
	mod.AddFunction(b.Func())
	if errs := Validate(mod); len(errs) > 0 {
		t.Fatalf("back edge rejected: %v", errs)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Function
		want  string
	}{
		{
			name: "entry_param_mismatch",
			build: func() *Function {
				f := &Function{Name: "f", Sig: validSig()}
				f.AddBlock() // no params despite the i32 parameter
				f.Blocks[0].Instrs = []Instruction{{Op: OpReturn}}
				return f
			},
			want: "entry block has 0 parameters",
		},
		{
			name: "empty_block",
			build: func() *Function {
				f := &Function{Name: "f", Sig: Signature{}}
				f.AddBlock()
				return f
			},
			want: "block is empty",
		},
		{
			name: "no_terminator",
			build: func() *Function {
				b := NewFunctionBuilder("f", Signature{})
				b.Iconst(1)
				return b.Func()
			},
			want: "does not end in a terminator",
		},
		{
			name: "terminator_mid_block",
			build: func() *Function {
				b := NewFunctionBuilder("f", Signature{})
				b.Return()
				b.Return()
				return b.Func()
			},
			want: "in the middle of a block",
		},
		{
			name: "use_before_def",
			build: func() *Function {
				b := NewFunctionBuilder("f", Signature{})
				v := b.Func().NewValue(KindInt32)
				b.Return(v)
				return b.Func()
			},
			want: "use of undefined value",
		},
		{
			name: "branch_arity",
			build: func() *Function {
				b := NewFunctionBuilder("f", Signature{})
				tgt := b.AddBlock(KindInt32)
				b.Jump(tgt) // no args for a one-param block
				b.SwitchTo(tgt)
				b.Return()
				return b.Func()
			},
			want: "passes 0 args",
		},
		{
			name: "unknown_callee",
			build: func() *Function {
				b := NewFunctionBuilder("f", Signature{})
				b.Call(FuncID(99), nil)
				b.Return()
				return b.Func()
			},
			want: "call to unknown function",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := &Module{}
			mod.AddFunction(tt.build())
			errs := Validate(mod)
			if len(errs) == 0 {
				t.Fatal("defect not reported")
			}
			found := false
			for _, e := range errs {
				if strings.Contains(e.Error(), tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not mention %q", errs, tt.want)
			}
		})
	}
}

func TestValidateLayoutMismatch(t *testing.T) {
	b := NewFunctionBuilder("f", Signature{})
	b.Return()
	f := b.Func()
	f.Layout = nil
	mod := &Module{}
	mod.AddFunction(f)
	errs := Validate(mod)
	if len(errs) == 0 || !strings.Contains(errs[0].Error(), "layout lists 0 blocks") {
		t.Errorf("layout mismatch not reported: %v", errs)
	}
}
