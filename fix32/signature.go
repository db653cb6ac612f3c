package fix32

import "github.com/light-player/fxc/ir"

// ConvertKind maps a value kind to its fixed-point container: Float32
// becomes Int32, everything else passes through.
func ConvertKind(k ir.Kind) ir.Kind {
	if k == ir.KindFloat32 {
		return ir.KindInt32
	}
	return k
}

// ConvertSignature rewrites a signature for fixed-point execution. The
// slot list keeps its length and order exactly: every Float32 slot
// becomes Int32, other kinds and the output-buffer role pass through
// unchanged, so the physical argument-passing convention stays valid.
func ConvertSignature(sig ir.Signature) ir.Signature {
	out := ir.Signature{
		Params:  make([]ir.Param, len(sig.Params)),
		Results: make([]ir.Kind, len(sig.Results)),
	}
	for i, p := range sig.Params {
		if p.Role == ir.RoleOutBuffer {
			out.Params[i] = p
			continue
		}
		out.Params[i] = ir.Param{Kind: ConvertKind(p.Kind), Role: p.Role}
	}
	for i, r := range sig.Results {
		out.Results[i] = ConvertKind(r)
	}
	return out
}
