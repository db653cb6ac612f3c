package fix32

import (
	"github.com/light-player/fxc/diag"
	"github.com/light-player/fxc/ir"
)

// blockBuilder creates the new function's blocks and keeps the two block
// orders straight. Blocks are created in old entity-numeric order, so new
// entity numbers equal old ones 1:1; the layout order is reproduced
// separately from the old layout, since the source compiler may have
// reordered blocks for fallthrough.
type blockBuilder struct {
	old    *ir.Function
	new    *ir.Function
	vmap   *valueMap
	bmap   *blockMap
	sealed map[ir.BlockID]bool // blocks whose new parameter list exists
}

func newBlockBuilder(old, new *ir.Function, vmap *valueMap) *blockBuilder {
	return &blockBuilder{
		old:    old,
		new:    new,
		vmap:   vmap,
		bmap:   newBlockMap(),
		sealed: make(map[ir.BlockID]bool),
	}
}

// build creates every block and binds the entry block's parameters from
// the new signature. Non-entry block parameters are created on demand by
// ensureParams, because their counts come from the old blocks and several
// predecessors may reach them in any order.
func (bb *blockBuilder) build() error {
	oldEntry := bb.old.Entry()
	if oldEntry == nil {
		return diag.Errorf(diag.CodeStructural, nil, "%s: function has no blocks", bb.old.Name)
	}
	if len(oldEntry.Params) != len(bb.old.Sig.Params) {
		return diag.Errorf(diag.CodeParamCount, nil,
			"%s: entry block has %d parameters, signature has %d",
			bb.old.Name, len(oldEntry.Params), len(bb.old.Sig.Params))
	}

	// Creation in entity order keeps entity ids aligned with the old
	// function, which the differential IR dumps rely on.
	for i := range bb.old.Blocks {
		oldBlk := &bb.old.Blocks[i]
		var newID ir.BlockID
		if oldBlk.ID == oldEntry.ID {
			// The entry block is the one block whose full
			// parameter list is knowable up front: it is bound
			// directly from the converted signature.
			kinds := make([]ir.Kind, len(bb.new.Sig.Params))
			for j, p := range bb.new.Sig.Params {
				if p.Role == ir.RoleOutBuffer {
					kinds[j] = ir.KindUInt32
				} else {
					kinds[j] = p.Kind
				}
			}
			newID = bb.new.AddBlock(kinds...)
			newBlk := bb.new.Block(newID)
			for j, oldParam := range oldBlk.Params {
				if err := bb.vmap.bind(oldParam, newBlk.Params[j]); err != nil {
					return err
				}
			}
			bb.sealed[oldBlk.ID] = true
		} else {
			newID = bb.new.AddBlock()
		}
		bb.bmap.bind(oldBlk.ID, newID)
	}

	// Layout order is reproduced independently of entity order.
	layout := make([]ir.BlockID, len(bb.old.Layout))
	for i, oldID := range bb.old.Layout {
		newID, err := bb.bmap.resolve(oldID)
		if err != nil {
			return err
		}
		layout[i] = newID
	}
	bb.new.Layout = layout
	return nil
}

// ensureParams creates the new parameters of a non-entry block the first
// time anything references them, deriving count and converted kind from
// the old block's actual parameter list rather than from whichever
// predecessor got there first. Later calls are no-ops, so predecessors
// may be processed in any order.
func (bb *blockBuilder) ensureParams(oldID ir.BlockID) error {
	if bb.sealed[oldID] {
		return nil
	}
	oldBlk := bb.old.Block(oldID)
	if oldBlk == nil {
		return diag.Errorf(diag.CodeStructural, nil,
			"%s: reference to unknown block%d", bb.old.Name, oldID)
	}
	newID, err := bb.bmap.resolve(oldID)
	if err != nil {
		return err
	}
	for i, oldParam := range oldBlk.Params {
		nv := bb.new.AppendBlockParam(newID, ConvertKind(oldBlk.ParamKinds[i]))
		if err := bb.vmap.bind(oldParam, nv); err != nil {
			return err
		}
	}
	bb.sealed[oldID] = true
	return nil
}
