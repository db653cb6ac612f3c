package ir

import (
	"math"
	"strconv"
	"strings"

	"github.com/light-player/fxc/diag"
)

// ParseModule parses the textual IR form produced by Format. It is the
// wire format of the regression fixtures: a sequence of func definitions,
// with // comments ignored (the harness reads directives out of them
// separately).
func ParseModule(src string) (*Module, error) {
	return ParseModuleFile("", src)
}

// ParseModuleFile is ParseModule with a file name for diagnostics.
func ParseModuleFile(file, src string) (*Module, error) {
	p := &parser{file: file}
	for i, raw := range strings.Split(src, "\n") {
		line := raw
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p.lines = append(p.lines, srcLine{no: i + 1, text: line})
	}
	return p.parse()
}

type srcLine struct {
	no   int
	text string
}

type parser struct {
	file  string
	lines []srcLine
	mod   *Module

	funcIDs map[string]FuncID
}

func (p *parser) errf(line int, format string, args ...any) error {
	return diag.Errorf(diag.CodeParse, &diag.Pos{File: p.file, Line: line, Col: 1}, format, args...)
}

// funcSpan is the header line plus the body line range of one function.
type funcSpan struct {
	header srcLine
	body   []srcLine
}

func (p *parser) parse() (*Module, error) {
	spans, err := p.split()
	if err != nil {
		return nil, err
	}
	p.mod = &Module{}
	p.funcIDs = make(map[string]FuncID)

	// Declare all signatures first so call sites can resolve callees
	// regardless of definition order.
	for _, sp := range spans {
		name, sig, err := p.parseHeader(sp.header)
		if err != nil {
			return nil, err
		}
		if _, dup := p.funcIDs[name]; dup {
			return nil, p.errf(sp.header.no, "duplicate function %q", name)
		}
		id := p.mod.AddFunction(&Function{Name: name, Sig: sig})
		p.funcIDs[name] = id
	}
	for i, sp := range spans {
		if err := p.parseBody(p.mod.Functions[i], sp.body); err != nil {
			return nil, err
		}
	}
	return p.mod, nil
}

func (p *parser) split() ([]funcSpan, error) {
	var spans []funcSpan
	i := 0
	for i < len(p.lines) {
		ln := p.lines[i]
		if !strings.HasPrefix(ln.text, "func ") {
			return nil, p.errf(ln.no, "expected func, got %q", ln.text)
		}
		sp := funcSpan{header: ln}
		i++
		closed := false
		for i < len(p.lines) {
			if p.lines[i].text == "}" {
				closed = true
				i++
				break
			}
			sp.body = append(sp.body, p.lines[i])
			i++
		}
		if !closed {
			return nil, p.errf(ln.no, "unterminated function body")
		}
		spans = append(spans, sp)
	}
	return spans, nil
}

func parseKind(s string) (Kind, bool) {
	switch s {
	case "f32":
		return KindFloat32, true
	case "i32":
		return KindInt32, true
	case "u32":
		return KindUInt32, true
	case "b8":
		return KindBool8, true
	}
	return KindInvalid, false
}

func (p *parser) parseHeader(ln srcLine) (string, Signature, error) {
	text := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(ln.text, "func")), "{")
	text = strings.TrimSpace(text)
	open := strings.IndexByte(text, '(')
	closing := strings.IndexByte(text, ')')
	if open < 1 || closing < open {
		return "", Signature{}, p.errf(ln.no, "malformed function header")
	}
	name := strings.TrimSpace(text[:open])
	var sig Signature
	for _, part := range splitList(text[open+1 : closing]) {
		if part == "outbuf" {
			sig.Params = append(sig.Params, Param{Kind: KindUInt32, Role: RoleOutBuffer})
			continue
		}
		k, ok := parseKind(part)
		if !ok {
			return "", Signature{}, p.errf(ln.no, "unknown parameter kind %q", part)
		}
		sig.Params = append(sig.Params, Param{Kind: k})
	}
	rest := strings.TrimSpace(text[closing+1:])
	if rest != "" {
		if !strings.HasPrefix(rest, "->") {
			return "", Signature{}, p.errf(ln.no, "malformed result list %q", rest)
		}
		for _, part := range splitList(strings.TrimPrefix(rest, "->")) {
			k, ok := parseKind(part)
			if !ok {
				return "", Signature{}, p.errf(ln.no, "unknown result kind %q", part)
			}
			sig.Results = append(sig.Results, k)
		}
	}
	return name, sig, nil
}

func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// blockHeaderOf parses "blockN(v0: f32, ...):" headers; returns ok=false
// for non-header lines.
func blockHeaderOf(text string) (id BlockID, params []string, kinds []Kind, ok bool) {
	if !strings.HasPrefix(text, "block") || !strings.HasSuffix(text, ":") {
		return 0, nil, nil, false
	}
	text = strings.TrimSuffix(text, ":")
	rest := text[len("block"):]
	paramText := ""
	if open := strings.IndexByte(rest, '('); open >= 0 {
		if !strings.HasSuffix(rest, ")") {
			return 0, nil, nil, false
		}
		paramText = rest[open+1 : len(rest)-1]
		rest = rest[:open]
	}
	n, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return 0, nil, nil, false
	}
	for _, part := range splitList(paramText) {
		name, kindText, found := strings.Cut(part, ":")
		if !found {
			return 0, nil, nil, false
		}
		k, kok := parseKind(strings.TrimSpace(kindText))
		if !kok {
			return 0, nil, nil, false
		}
		params = append(params, strings.TrimSpace(name))
		kinds = append(kinds, k)
	}
	return BlockID(n), params, kinds, true
}

func (p *parser) parseBody(f *Function, body []srcLine) error {
	// Pass 1: create blocks. Headers carry entity ids; textual order is
	// layout order, and the two may diverge.
	type header struct {
		ln     srcLine
		params []string
		kinds  []Kind
	}
	headers := make(map[BlockID]header)
	var layout []BlockID
	for _, ln := range body {
		id, params, kinds, ok := blockHeaderOf(ln.text)
		if !ok {
			continue
		}
		if _, dup := headers[id]; dup {
			return p.errf(ln.no, "duplicate block%d", id)
		}
		headers[id] = header{ln: ln, params: params, kinds: kinds}
		layout = append(layout, id)
	}
	if len(layout) == 0 {
		return p.errf(0, "function %s has no blocks", f.Name)
	}

	names := make(map[string]Value)
	// Blocks are created in entity order so new entity numbers line up
	// with the textual ids.
	for id := BlockID(0); int(id) < len(layout); id++ {
		h, ok := headers[id]
		if !ok {
			return p.errf(body[0].no, "function %s is missing block%d", f.Name, id)
		}
		f.AddBlock(h.kinds...)
		for i, nm := range h.params {
			if _, dup := names[nm]; dup {
				return p.errf(h.ln.no, "value %s defined more than once", nm)
			}
			names[nm] = f.Blocks[id].Params[i]
		}
	}
	f.Layout = layout

	// Pass 2: instructions, in layout (textual) order.
	cur := BlockNone
	for _, ln := range body {
		if id, _, _, ok := blockHeaderOf(ln.text); ok {
			cur = id
			continue
		}
		if cur == BlockNone {
			return p.errf(ln.no, "instruction before first block header")
		}
		ins, err := p.parseInstr(f, names, ln)
		if err != nil {
			return err
		}
		blk := &f.Blocks[cur]
		blk.Instrs = append(blk.Instrs, ins)
	}
	return nil
}

func (p *parser) lookup(names map[string]Value, ln srcLine, name string) (Value, error) {
	v, ok := names[name]
	if !ok {
		return ValueNone, p.errf(ln.no, "use of undefined value %s", name)
	}
	return v, nil
}

func (p *parser) lookupAll(names map[string]Value, ln srcLine, list []string) ([]Value, error) {
	if len(list) == 0 {
		return nil, nil
	}
	vals := make([]Value, len(list))
	for i, nm := range list {
		v, err := p.lookup(names, ln, nm)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// parseTarget parses "blockN" or "blockN(v0, v1)".
func (p *parser) parseTarget(names map[string]Value, ln srcLine, text string) (BlockTarget, error) {
	text = strings.TrimSpace(text)
	argText := ""
	if open := strings.IndexByte(text, '('); open >= 0 {
		if !strings.HasSuffix(text, ")") {
			return BlockTarget{}, p.errf(ln.no, "malformed branch target %q", text)
		}
		argText = text[open+1 : len(text)-1]
		text = text[:open]
	}
	if !strings.HasPrefix(text, "block") {
		return BlockTarget{}, p.errf(ln.no, "malformed branch target %q", text)
	}
	n, err := strconv.ParseUint(text[len("block"):], 10, 32)
	if err != nil {
		return BlockTarget{}, p.errf(ln.no, "malformed branch target %q", text)
	}
	args, err := p.lookupAll(names, ln, splitList(argText))
	if err != nil {
		return BlockTarget{}, err
	}
	return BlockTarget{Block: BlockID(n), Args: args}, nil
}

// splitTargets splits "v0, block1(v2), block2(v3, v4)" style operand
// lists at top-level commas only.
func splitTargets(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = Opcode(op)
	}
	return m
}()

func (p *parser) parseInstr(f *Function, names map[string]Value, ln srcLine) (Instruction, error) {
	text := ln.text
	var retNames []string
	if lhs, rhs, found := strings.Cut(text, "="); found && !strings.Contains(lhs, "(") {
		retNames = splitList(lhs)
		text = strings.TrimSpace(rhs)
	}
	mnemonic, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)
	op, ok := opcodeByName[mnemonic]
	if !ok || op == OpInvalid {
		return Instruction{}, p.errf(ln.no, "unknown instruction %q", mnemonic)
	}

	ins := Instruction{Op: op}
	var retKinds []Kind
	switch op {
	case OpIconst:
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return Instruction{}, p.errf(ln.no, "malformed integer constant %q", rest)
		}
		ins.Imm = int64(int32(n))
		retKinds = []Kind{KindInt32}
	case OpBconst:
		n, err := strconv.ParseInt(rest, 10, 8)
		if err != nil || (n != 0 && n != 1) {
			return Instruction{}, p.errf(ln.no, "malformed bool constant %q", rest)
		}
		ins.Imm = n
		retKinds = []Kind{KindBool8}
	case OpFconst:
		fv, err := strconv.ParseFloat(rest, 32)
		if err != nil {
			return Instruction{}, p.errf(ln.no, "malformed float constant %q", rest)
		}
		ins.Imm = int64(math.Float32bits(float32(fv)))
		retKinds = []Kind{KindFloat32}
	case OpIadd, OpIsub, OpImul, OpIdiv, OpFixMul, OpFixDiv, OpImin, OpImax:
		args, err := p.lookupAll(names, ln, splitList(rest))
		if err != nil {
			return Instruction{}, err
		}
		if len(args) != 2 {
			return Instruction{}, p.errf(ln.no, "%s wants 2 operands", mnemonic)
		}
		ins.Args = args
		retKinds = []Kind{KindInt32}
	case OpFadd, OpFsub, OpFmul, OpFdiv, OpFmin, OpFmax:
		args, err := p.lookupAll(names, ln, splitList(rest))
		if err != nil {
			return Instruction{}, err
		}
		if len(args) != 2 {
			return Instruction{}, p.errf(ln.no, "%s wants 2 operands", mnemonic)
		}
		ins.Args = args
		retKinds = []Kind{KindFloat32}
	case OpFneg, OpFsqrt:
		v, err := p.lookup(names, ln, rest)
		if err != nil {
			return Instruction{}, err
		}
		ins.Args = []Value{v}
		retKinds = []Kind{KindFloat32}
	case OpBoolToFloat:
		v, err := p.lookup(names, ln, rest)
		if err != nil {
			return Instruction{}, err
		}
		ins.Args = []Value{v}
		retKinds = []Kind{KindFloat32}
	case OpBoolToInt:
		v, err := p.lookup(names, ln, rest)
		if err != nil {
			return Instruction{}, err
		}
		ins.Args = []Value{v}
		retKinds = []Kind{KindInt32}
	case OpIshl:
		parts := splitList(rest)
		if len(parts) != 2 {
			return Instruction{}, p.errf(ln.no, "ishl wants value, bits")
		}
		v, err := p.lookup(names, ln, parts[0])
		if err != nil {
			return Instruction{}, err
		}
		bits, err := strconv.ParseUint(parts[1], 10, 5)
		if err != nil {
			return Instruction{}, p.errf(ln.no, "malformed shift amount %q", parts[1])
		}
		ins.Args = []Value{v}
		ins.Imm = int64(bits)
		retKinds = []Kind{KindInt32}
	case OpIcmp:
		condText, opnds, _ := strings.Cut(rest, " ")
		cond := -1
		for i, nm := range intCondNames {
			if nm == condText {
				cond = i
			}
		}
		if cond < 0 {
			return Instruction{}, p.errf(ln.no, "unknown icmp condition %q", condText)
		}
		args, err := p.lookupAll(names, ln, splitList(opnds))
		if err != nil {
			return Instruction{}, err
		}
		if len(args) != 2 {
			return Instruction{}, p.errf(ln.no, "icmp wants 2 operands")
		}
		ins.IntCond = IntCond(cond)
		ins.Args = args
		retKinds = []Kind{KindBool8}
	case OpFcmp:
		condText, opnds, _ := strings.Cut(rest, " ")
		cond := -1
		for i, nm := range floatCondNames {
			if nm == condText {
				cond = i
			}
		}
		if cond < 0 {
			return Instruction{}, p.errf(ln.no, "unknown fcmp condition %q", condText)
		}
		args, err := p.lookupAll(names, ln, splitList(opnds))
		if err != nil {
			return Instruction{}, err
		}
		if len(args) != 2 {
			return Instruction{}, p.errf(ln.no, "fcmp wants 2 operands")
		}
		ins.FloatCond = FloatCond(cond)
		ins.Args = args
		retKinds = []Kind{KindBool8}
	case OpSelect:
		args, err := p.lookupAll(names, ln, splitList(rest))
		if err != nil {
			return Instruction{}, err
		}
		if len(args) != 3 {
			return Instruction{}, p.errf(ln.no, "select wants 3 operands")
		}
		ins.Args = args
		retKinds = []Kind{f.ValueKind(args[1])}
	case OpStore:
		parts := splitList(rest)
		if len(parts) != 3 {
			return Instruction{}, p.errf(ln.no, "store wants ptr, value, offset")
		}
		args, err := p.lookupAll(names, ln, parts[:2])
		if err != nil {
			return Instruction{}, err
		}
		off, err := strconv.ParseInt(parts[2], 10, 32)
		if err != nil {
			return Instruction{}, p.errf(ln.no, "malformed store offset %q", parts[2])
		}
		ins.Args = args
		ins.Imm = off
	case OpLoad:
		kindText, opnds, _ := strings.Cut(rest, " ")
		k, kok := parseKind(kindText)
		if !kok {
			return Instruction{}, p.errf(ln.no, "unknown load kind %q", kindText)
		}
		parts := splitList(opnds)
		if len(parts) != 2 {
			return Instruction{}, p.errf(ln.no, "load wants kind ptr, offset")
		}
		v, err := p.lookup(names, ln, parts[0])
		if err != nil {
			return Instruction{}, err
		}
		off, err := strconv.ParseInt(parts[1], 10, 32)
		if err != nil {
			return Instruction{}, p.errf(ln.no, "malformed load offset %q", parts[1])
		}
		ins.Args = []Value{v}
		ins.Imm = off
		retKinds = []Kind{k}
	case OpCall:
		open := strings.IndexByte(rest, '(')
		if open < 1 || !strings.HasSuffix(rest, ")") {
			return Instruction{}, p.errf(ln.no, "malformed call %q", rest)
		}
		callee := strings.TrimSpace(rest[:open])
		id, found := p.funcIDs[callee]
		if !found {
			return Instruction{}, p.errf(ln.no, "call to unknown function %q", callee)
		}
		args, err := p.lookupAll(names, ln, splitList(rest[open+1:len(rest)-1]))
		if err != nil {
			return Instruction{}, err
		}
		ins.Callee = id
		ins.Args = args
		retKinds = p.mod.Functions[id].Sig.Results
	case OpJump:
		t, err := p.parseTarget(names, ln, rest)
		if err != nil {
			return Instruction{}, err
		}
		ins.Targets = []BlockTarget{t}
	case OpBranch:
		parts := splitTargets(rest)
		if len(parts) != 3 {
			return Instruction{}, p.errf(ln.no, "br wants cond, then-target, else-target")
		}
		cond, err := p.lookup(names, ln, parts[0])
		if err != nil {
			return Instruction{}, err
		}
		then, err := p.parseTarget(names, ln, parts[1])
		if err != nil {
			return Instruction{}, err
		}
		els, err := p.parseTarget(names, ln, parts[2])
		if err != nil {
			return Instruction{}, err
		}
		ins.Args = []Value{cond}
		ins.Targets = []BlockTarget{then, els}
	case OpReturn:
		args, err := p.lookupAll(names, ln, splitList(rest))
		if err != nil {
			return Instruction{}, err
		}
		ins.Args = args
	default:
		return Instruction{}, p.errf(ln.no, "unknown instruction %q", mnemonic)
	}

	if len(retNames) != len(retKinds) {
		return Instruction{}, p.errf(ln.no, "%s defines %d values, got %d names", mnemonic, len(retKinds), len(retNames))
	}
	for i, nm := range retNames {
		if _, dup := names[nm]; dup {
			return Instruction{}, p.errf(ln.no, "value %s defined more than once", nm)
		}
		v := f.NewValue(retKinds[i])
		names[nm] = v
		ins.Rets = append(ins.Rets, v)
	}
	return ins, nil
}
