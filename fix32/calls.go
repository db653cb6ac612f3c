package fix32

import (
	"github.com/light-player/fxc/diag"
	"github.com/light-player/fxc/ir"
)

// callState is the per-function-transform scratch state for call sites.
// It re-declares each old callee reference against the callee's
// transformed signature, seeded from the module-wide id maps, and caches
// the result so the same old callee always resolves to the same new
// reference across every call site in the function.
type callState struct {
	ctx    *Context
	fnName string
	seen   map[ir.FuncID]callRef
}

// callRef is a re-declared callee: its new id and converted signature.
type callRef struct {
	id  ir.FuncID
	sig ir.Signature
}

func newCallState(ctx *Context, fnName string) *callState {
	return &callState{ctx: ctx, fnName: fnName, seen: make(map[ir.FuncID]callRef)}
}

// resolve returns the transformed reference for an old callee. Module
// functions resolve through the bidirectional id maps, since the module's
// functions are not guaranteed to be transformed in dependency order.
func (cs *callState) resolve(oldCallee ir.FuncID) (callRef, error) {
	if ref, ok := cs.seen[oldCallee]; ok {
		return ref, nil
	}
	newID, ok := cs.ctx.NewFuncID(oldCallee)
	if !ok {
		return callRef{}, diag.Errorf(diag.CodeStructural, nil,
			"%s: call to fn%d, which has no transformed declaration",
			cs.fnName, oldCallee)
	}
	callee := cs.ctx.Module().Function(newID)
	ref := callRef{id: newID, sig: callee.Sig}
	cs.seen[oldCallee] = ref
	return ref, nil
}
