package fix32

import (
	"github.com/light-player/fxc/diag"
	"github.com/light-player/fxc/ir"
)

// Context carries the module-wide state of one transform run: the source
// module, the module under construction, and the bidirectional
// old-id/new-id function maps used to resolve cross-function calls
// regardless of body conversion order.
type Context struct {
	oldMod *ir.Module
	newMod *ir.Module

	oldToNew map[ir.FuncID]ir.FuncID
	newToOld map[ir.FuncID]ir.FuncID

	sigsDone bool
}

// NewContext prepares a transform of m. No conversion happens yet.
func NewContext(m *ir.Module) *Context {
	return &Context{
		oldMod:   m,
		newMod:   &ir.Module{},
		oldToNew: make(map[ir.FuncID]ir.FuncID),
		newToOld: make(map[ir.FuncID]ir.FuncID),
	}
}

// Module returns the module under construction.
func (c *Context) Module() *ir.Module { return c.newMod }

// NewFuncID resolves an old function id to its transformed counterpart.
func (c *Context) NewFuncID(old ir.FuncID) (ir.FuncID, bool) {
	id, ok := c.oldToNew[old]
	return id, ok
}

// OldFuncID resolves a transformed function id back to its source id.
func (c *Context) OldFuncID(new ir.FuncID) (ir.FuncID, bool) {
	id, ok := c.newToOld[new]
	return id, ok
}

// ConvertSignatures converts every function's signature and registers the
// declarations in the id maps. It must complete before any body is
// converted; ConvertBody enforces this.
func (c *Context) ConvertSignatures() error {
	for _, old := range c.oldMod.Functions {
		nf := &ir.Function{
			Name: old.Name,
			Sig:  ConvertSignature(old.Sig),
		}
		newID := c.newMod.AddFunction(nf)
		c.oldToNew[old.ID] = newID
		c.newToOld[newID] = old.ID
	}
	c.sigsDone = true
	return nil
}

// ConvertBody converts one function's body. Bodies may be converted in
// any order, including concurrently by independent callers, once
// ConvertSignatures has run.
func (c *Context) ConvertBody(oldID ir.FuncID) error {
	if !c.sigsDone {
		return diag.Errorf(diag.CodeStructural, nil,
			"body conversion before signature registration")
	}
	old := c.oldMod.Function(oldID)
	if old == nil {
		return diag.Errorf(diag.CodeStructural, nil, "unknown function fn%d", oldID)
	}
	newID := c.oldToNew[oldID]
	t := newTransform(c, old, c.newMod.Function(newID))
	return t.run()
}

// Transform converts a whole module. Any failure aborts the transform:
// no partially converted module is returned.
func Transform(m *ir.Module) (*ir.Module, error) {
	c := NewContext(m)
	if err := c.ConvertSignatures(); err != nil {
		return nil, err
	}
	for _, f := range m.Functions {
		if err := c.ConvertBody(f.ID); err != nil {
			return nil, err
		}
	}
	return c.newMod, nil
}
