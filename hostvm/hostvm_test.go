package hostvm

import (
	"math"
	"testing"

	"github.com/light-player/fxc/exec"
	"github.com/light-player/fxc/ir"
)

func f32Sig(nparams, nresults int) ir.Signature {
	var sig ir.Signature
	for i := 0; i < nparams; i++ {
		sig.Params = append(sig.Params, ir.Param{Kind: ir.KindFloat32})
	}
	for i := 0; i < nresults; i++ {
		sig.Results = append(sig.Results, ir.KindFloat32)
	}
	return sig
}

func compileOne(t *testing.T, fn *ir.Function, mode exec.RunMode) *Program {
	t.Helper()
	mod := &ir.Module{}
	mod.AddFunction(fn)
	p, err := Compile(mod, mode)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func callFloat(t *testing.T, p *Program, name string, args ...float32) float32 {
	t.Helper()
	words := make([]uint32, len(args))
	for i, a := range args {
		words[i] = math.Float32bits(a)
	}
	w, err := p.CallScalar(name, ir.KindFloat32, words)
	if err != nil {
		t.Fatalf("%s%v: %v", name, args, err)
	}
	return math.Float32frombits(w)
}

func TestFloatArith(t *testing.T) {
	b := ir.NewFunctionBuilder("madd", f32Sig(3, 1))
	p := b.BlockParams(b.CurrentBlock())
	b.Return(b.Binary(ir.OpFadd, b.Binary(ir.OpFmul, p[0], p[1]), p[2]))
	prog := compileOne(t, b.Func(), exec.ModeFloat)

	if got := callFloat(t, prog, "madd", 2, 3, 0.5); got != 6.5 {
		t.Errorf("madd(2, 3, 0.5) = %g, want 6.5", got)
	}
}

func TestFloatSqrtNeg(t *testing.T) {
	b := ir.NewFunctionBuilder("root", f32Sig(1, 1))
	p := b.BlockParams(b.CurrentBlock())
	b.Return(b.Unary(ir.OpFsqrt, p[0]))
	prog := compileOne(t, b.Func(), exec.ModeFloat)

	if got := callFloat(t, prog, "root", 9); got != 3 {
		t.Errorf("root(9) = %g, want 3", got)
	}
	if got := callFloat(t, prog, "root", -1); !math.IsNaN(float64(got)) {
		t.Errorf("root(-1) = %g, want NaN", got)
	}
}

func TestFcmpNaN(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		cond ir.FloatCond
		a, b float32
		want uint32
	}{
		{ir.FloatOeq, 1, 1, 1},
		{ir.FloatOeq, nan, 1, 0},
		{ir.FloatUeq, nan, 1, 1},
		{ir.FloatOne, nan, 1, 0},
		{ir.FloatUne, nan, 1, 1},
		{ir.FloatOlt, 1, 2, 1},
		{ir.FloatOlt, nan, 2, 0},
		{ir.FloatUlt, nan, 2, 1},
		{ir.FloatOge, 2, 1, 1},
		{ir.FloatUge, nan, nan, 1},
	}
	for _, tt := range tests {
		got := fcmp(tt.cond, math.Float32bits(tt.a), math.Float32bits(tt.b))
		if got != tt.want {
			t.Errorf("fcmp(%v, %g, %g) = %d, want %d", tt.cond, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFixedHelpers(t *testing.T) {
	const one = 1 << 16
	if got := int32(fixMul(3*one, 2*one)); got != 6*one {
		t.Errorf("fixMul(3, 2) = %#x, want 6.0", got)
	}
	if got := int32(fixDiv(3*one, 2*one)); got != one+one/2 {
		t.Errorf("fixDiv(3, 2) = %#x, want 1.5", got)
	}
	if got := int32(fixDiv(one, 0)); got != math.MaxInt32 {
		t.Errorf("fixDiv(1, 0) = %#x, want MaxInt32", got)
	}
	if got := int32(fixDiv(0xffff0000, 0)); got != math.MinInt32 { // -1.0 / 0
		t.Errorf("fixDiv(-1, 0) = %#x, want MinInt32", got)
	}
}

func TestIdivMatchesHardware(t *testing.T) {
	tests := []struct{ a, b, want int32 }{
		{7, 2, 3},
		{-7, 2, -3},
		{7, 0, -1},
		{0, 0, -1},
		{math.MinInt32, -1, math.MinInt32},
	}
	for _, tt := range tests {
		if got := int32(idiv(uint32(tt.a), uint32(tt.b))); got != tt.want {
			t.Errorf("idiv(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestControlFlow(t *testing.T) {
	sig := ir.Signature{
		Params:  []ir.Param{{Kind: ir.KindInt32}},
		Results: []ir.Kind{ir.KindInt32},
	}
	b := ir.NewFunctionBuilder("sum", sig)
	n := b.BlockParams(b.CurrentBlock())[0]
	loop := b.AddBlock(ir.KindInt32, ir.KindInt32)
	exit := b.AddBlock(ir.KindInt32)

	zero := b.Iconst(0)
	b.Jump(loop, zero, zero)

	b.SwitchTo(loop)
	lp := b.BlockParams(loop)
	acc := b.Binary(ir.OpIadd, lp[1], lp[0])
	next := b.Binary(ir.OpIadd, lp[0], b.Iconst(1))
	more := b.Icmp(ir.IntSlt, next, n)
	b.Branch(more, loop, []ir.Value{next, acc}, exit, []ir.Value{acc})

	b.SwitchTo(exit)
	b.Return(b.BlockParams(exit)[0])

	prog := compileOne(t, b.Func(), exec.ModeFixed)
	got, err := prog.CallScalar("sum", ir.KindInt32, []uint32{5})
	if err != nil {
		t.Fatal(err)
	}
	if int32(got) != 10 {
		t.Errorf("sum(5) = %d, want 10", int32(got))
	}
}

func TestStepBudget(t *testing.T) {
	sig := ir.Signature{Results: []ir.Kind{ir.KindInt32}}
	b := ir.NewFunctionBuilder("forever", sig)
	loop := b.AddBlock()
	b.Jump(loop)
	b.SwitchTo(loop)
	b.Jump(loop)
	prog := compileOne(t, b.Func(), exec.ModeFixed)

	_, err := prog.CallScalar("forever", ir.KindInt32, nil)
	if err == nil {
		t.Fatal("unbounded loop did not hit the step budget")
	}
}

func TestOutputBuffer(t *testing.T) {
	sig := ir.Signature{Params: []ir.Param{
		{Kind: ir.KindInt32},
		{Kind: ir.KindUInt32, Role: ir.RoleOutBuffer},
	}}
	b := ir.NewFunctionBuilder("pair", sig)
	p := b.BlockParams(b.CurrentBlock())
	b.Store(p[1], p[0], 0)
	b.Store(p[1], b.Binary(ir.OpIadd, p[0], p[0]), 4)
	b.Return()
	prog := compileOne(t, b.Func(), exec.ModeFixed)

	out, err := prog.CallVec("pair", 2, []uint32{21})
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != 21 || out[1] != 42 {
		t.Errorf("pair(21) = %v, want [21 42]", out)
	}
}

func TestOutputBufferBounds(t *testing.T) {
	// A negative store offset wraps the unsigned address; it must come
	// back as an error, never a panic.
	sig := ir.Signature{Params: []ir.Param{
		{Kind: ir.KindInt32},
		{Kind: ir.KindUInt32, Role: ir.RoleOutBuffer},
	}}
	b := ir.NewFunctionBuilder("under", sig)
	p := b.BlockParams(b.CurrentBlock())
	b.Store(p[1], p[0], -4)
	b.Return()
	prog := compileOne(t, b.Func(), exec.ModeFixed)
	if err := prog.CallVoid("under", []uint32{7}); err == nil {
		t.Fatal("store below the output buffer did not fail")
	}

	b = ir.NewFunctionBuilder("over", sig)
	p = b.BlockParams(b.CurrentBlock())
	b.Store(p[1], p[0], 64)
	b.Return()
	prog = compileOne(t, b.Func(), exec.ModeFixed)
	if err := prog.CallVoid("over", []uint32{7}); err == nil {
		t.Fatal("store past the output buffer did not fail")
	}
}

func TestCallDepthLimit(t *testing.T) {
	mod := &ir.Module{}
	b := ir.NewFunctionBuilder("rec", ir.Signature{Results: []ir.Kind{ir.KindInt32}})
	// Self call: the module is built before IDs exist, so reserve id 0.
	rets := b.Call(0, []ir.Kind{ir.KindInt32})
	b.Return(rets[0])
	mod.AddFunction(b.Func())

	prog, err := Compile(mod, exec.ModeFixed)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := prog.CallScalar("rec", ir.KindInt32, nil); err == nil {
		t.Fatal("unbounded recursion did not hit the depth limit")
	}
}
