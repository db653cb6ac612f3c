package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Format renders the module in the textual IR form. The output is
// deterministic: the same module always formats to the same bytes, which
// differential dumps and regression tests rely on.
func (m *Module) Format() string {
	nameOf := func(id FuncID) string {
		if f := m.Function(id); f != nil {
			return f.Name
		}
		return fmt.Sprintf("fn%d", id)
	}
	var sb strings.Builder
	for i, f := range m.Functions {
		if i > 0 {
			sb.WriteByte('\n')
		}
		formatFunction(&sb, f, nameOf)
	}
	return sb.String()
}

// Format renders one function standalone. Call targets print as raw
// fnN ids; use Module.Format for name resolution.
func (f *Function) Format() string {
	var sb strings.Builder
	formatFunction(&sb, f, func(id FuncID) string { return fmt.Sprintf("fn%d", id) })
	return sb.String()
}

// formatFunction prints blocks in layout order; each block header shows
// its entity id, so entity/layout divergence is visible in dumps.
func formatFunction(sb *strings.Builder, f *Function, nameOf func(FuncID) string) {
	sb.WriteString("func ")
	sb.WriteString(f.Name)
	sb.WriteByte('(')
	for i, p := range f.Sig.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		if p.Role == RoleOutBuffer {
			sb.WriteString("outbuf")
		} else {
			sb.WriteString(p.Kind.String())
		}
	}
	sb.WriteByte(')')
	if len(f.Sig.Results) > 0 {
		sb.WriteString(" -> ")
		for i, r := range f.Sig.Results {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(r.String())
		}
	}
	sb.WriteString(" {\n")
	for _, id := range f.Layout {
		blk := &f.Blocks[id]
		sb.WriteString(formatBlockHeader(blk))
		for i := range blk.Instrs {
			sb.WriteString("    ")
			sb.WriteString(formatInstr(f, &blk.Instrs[i], nameOf))
			sb.WriteByte('\n')
		}
	}
	sb.WriteString("}\n")
}

func formatBlockHeader(blk *Block) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "block%d", blk.ID)
	if len(blk.Params) > 0 {
		sb.WriteByte('(')
		for i, p := range blk.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "v%d: %s", p, blk.ParamKinds[i])
		}
		sb.WriteByte(')')
	}
	sb.WriteString(":\n")
	return sb.String()
}

func formatValues(vals []Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("v%d", v)
	}
	return strings.Join(parts, ", ")
}

func formatTarget(t BlockTarget) string {
	if len(t.Args) == 0 {
		return fmt.Sprintf("block%d", t.Block)
	}
	return fmt.Sprintf("block%d(%s)", t.Block, formatValues(t.Args))
}

// FormatFloat32 renders a float constant the way the printer and the
// fixture directives spell them.
func FormatFloat32(f float32) string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") && !strings.Contains(s, "NaN") {
		s += ".0"
	}
	return s
}

func formatInstr(f *Function, ins *Instruction, nameOf func(FuncID) string) string {
	var sb strings.Builder
	if len(ins.Rets) > 0 {
		sb.WriteString(formatValues(ins.Rets))
		sb.WriteString(" = ")
	}
	sb.WriteString(ins.Op.String())
	switch ins.Op {
	case OpIconst, OpBconst:
		fmt.Fprintf(&sb, " %d", ins.Imm)
	case OpFconst:
		sb.WriteByte(' ')
		sb.WriteString(FormatFloat32(math.Float32frombits(uint32(ins.Imm))))
	case OpIcmp:
		fmt.Fprintf(&sb, " %s %s", ins.IntCond, formatValues(ins.Args))
	case OpFcmp:
		fmt.Fprintf(&sb, " %s %s", ins.FloatCond, formatValues(ins.Args))
	case OpIshl:
		fmt.Fprintf(&sb, " v%d, %d", ins.Args[0], ins.Imm)
	case OpStore:
		fmt.Fprintf(&sb, " v%d, v%d, %d", ins.Args[0], ins.Args[1], ins.Imm)
	case OpLoad:
		fmt.Fprintf(&sb, " %s v%d, %d", f.ValueKind(ins.Rets[0]), ins.Args[0], ins.Imm)
	case OpCall:
		fmt.Fprintf(&sb, " %s(%s)", nameOf(ins.Callee), formatValues(ins.Args))
	case OpJump:
		sb.WriteByte(' ')
		sb.WriteString(formatTarget(ins.Targets[0]))
	case OpBranch:
		fmt.Fprintf(&sb, " v%d, %s, %s", ins.Args[0],
			formatTarget(ins.Targets[0]), formatTarget(ins.Targets[1]))
	case OpReturn:
		if len(ins.Args) > 0 {
			sb.WriteByte(' ')
			sb.WriteString(formatValues(ins.Args))
		}
	default:
		if len(ins.Args) > 0 {
			sb.WriteByte(' ')
			sb.WriteString(formatValues(ins.Args))
		}
	}
	return sb.String()
}
