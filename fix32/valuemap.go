package fix32

import (
	"github.com/light-player/fxc/diag"
	"github.com/light-player/fxc/ir"
)

// valueMap correlates old SSA values with their transformed counterparts.
// Every live old value must be mapped before any consumer is converted;
// a miss is a structural error, not a recoverable condition.
type valueMap struct {
	fnName string
	vals   map[ir.Value]ir.Value
}

func newValueMap(fnName string) *valueMap {
	return &valueMap{fnName: fnName, vals: make(map[ir.Value]ir.Value)}
}

// bind records the transformed counterpart of an old value. Binding the
// same old value twice would break SSA single definition, so it fails.
func (m *valueMap) bind(old, new ir.Value) error {
	if _, dup := m.vals[old]; dup {
		return diag.Errorf(diag.CodeStructural, nil,
			"%s: value v%d mapped twice", m.fnName, old)
	}
	m.vals[old] = new
	return nil
}

// resolve returns the transformed counterpart of an old value.
func (m *valueMap) resolve(old ir.Value) (ir.Value, error) {
	v, ok := m.vals[old]
	if !ok {
		return ir.ValueNone, diag.Errorf(diag.CodeUnresolvedValue, nil,
			"%s: no mapping for value v%d", m.fnName, old)
	}
	return v, nil
}

// resolveAll maps a whole operand list.
func (m *valueMap) resolveAll(old []ir.Value) ([]ir.Value, error) {
	if len(old) == 0 {
		return nil, nil
	}
	out := make([]ir.Value, len(old))
	for i, v := range old {
		nv, err := m.resolve(v)
		if err != nil {
			return nil, err
		}
		out[i] = nv
	}
	return out, nil
}

// blockMap correlates old block entity ids with new ones. Blocks are
// created in old entity order so the mapping is 1:1 by construction; the
// table still exists so diagnostics and differential dumps never have to
// assume that.
type blockMap struct {
	blocks map[ir.BlockID]ir.BlockID
}

func newBlockMap() *blockMap {
	return &blockMap{blocks: make(map[ir.BlockID]ir.BlockID)}
}

func (m *blockMap) bind(old, new ir.BlockID) {
	m.blocks[old] = new
}

func (m *blockMap) resolve(old ir.BlockID) (ir.BlockID, error) {
	b, ok := m.blocks[old]
	if !ok {
		return ir.BlockNone, diag.Errorf(diag.CodeStructural, nil,
			"no mapping for block%d", old)
	}
	return b, nil
}
