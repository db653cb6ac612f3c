package ir

import "fmt"

// ValidationError describes one structural defect found in a function.
type ValidationError struct {
	Function string
	Block    BlockID
	Message  string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Block != BlockNone {
		return fmt.Sprintf("in function %s, block%d: %s", e.Function, e.Block, e.Message)
	}
	return fmt.Sprintf("in function %s: %s", e.Function, e.Message)
}

// Validate checks structural IR invariants for every function in the
// module: def-before-use in layout order, every block terminated exactly
// once at the end, branch argument counts matching target parameter
// counts, and entry parameters matching the signature.
func Validate(m *Module) []ValidationError {
	var errs []ValidationError
	for _, f := range m.Functions {
		errs = append(errs, validateFunction(m, f)...)
	}
	return errs
}

func validateFunction(m *Module, f *Function) []ValidationError {
	var errs []ValidationError
	fail := func(blk BlockID, format string, args ...any) {
		errs = append(errs, ValidationError{Function: f.Name, Block: blk, Message: fmt.Sprintf(format, args...)})
	}

	if len(f.Layout) != len(f.Blocks) {
		fail(BlockNone, "layout lists %d blocks, function has %d", len(f.Layout), len(f.Blocks))
		return errs
	}
	entry := f.Entry()
	if entry == nil {
		fail(BlockNone, "function has no blocks")
		return errs
	}
	if len(entry.Params) != len(f.Sig.Params) {
		fail(entry.ID, "entry block has %d parameters, signature has %d", len(entry.Params), len(f.Sig.Params))
	}

	defined := make([]bool, f.NumValues())
	def := func(blk BlockID, v Value) {
		if !v.Valid() || int(v) >= len(defined) {
			fail(blk, "definition of unallocated value v%d", v)
			return
		}
		if defined[v] {
			fail(blk, "value v%d defined more than once", v)
		}
		defined[v] = true
	}
	// Block parameters are definition sites regardless of layout
	// position: a back edge may pass arguments to an earlier block.
	for _, blk := range f.Blocks {
		for _, p := range blk.Params {
			def(blk.ID, p)
		}
	}

	use := func(blk BlockID, v Value) {
		if !v.Valid() || int(v) >= len(defined) || !defined[v] {
			fail(blk, "use of undefined value v%d", v)
		}
	}

	for _, id := range f.Layout {
		blk := &f.Blocks[id]
		if len(blk.Instrs) == 0 {
			fail(id, "block is empty")
			continue
		}
		for i := range blk.Instrs {
			ins := &blk.Instrs[i]
			last := i == len(blk.Instrs)-1
			if ins.Op.IsTerminator() != last {
				if last {
					fail(id, "block does not end in a terminator")
				} else {
					fail(id, "%s in the middle of a block", ins.Op)
				}
			}
			for _, a := range ins.Args {
				use(id, a)
			}
			for _, r := range ins.Rets {
				def(id, r)
			}
			for _, t := range ins.Targets {
				tb := f.Block(t.Block)
				if tb == nil {
					fail(id, "branch to unknown block%d", t.Block)
					continue
				}
				if len(t.Args) != len(tb.Params) {
					fail(id, "branch to block%d passes %d args, block has %d params", t.Block, len(t.Args), len(tb.Params))
				}
				for _, a := range t.Args {
					use(id, a)
				}
			}
			if ins.Op == OpCall && m.Function(ins.Callee) == nil {
				fail(id, "call to unknown function fn%d", ins.Callee)
			}
		}
	}
	return errs
}
