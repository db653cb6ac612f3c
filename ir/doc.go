// Package ir defines the SSA intermediate representation for fxc.
//
// A function is an ordered list of basic blocks. Each block carries an
// ordered parameter list (the phi-node equivalent: a block receives its
// parameter values from whichever predecessor branched into it) and an
// ordered instruction list ending in a terminator. Every Value is defined
// exactly once, by an instruction result slot or a block-parameter slot.
//
// Blocks have two independent orders. The entity order is the stable
// numeric identity assigned at creation, used by diagnostics and
// differential IR dumps. The layout order is the position in the emitted
// instruction stream, which the source compiler may have reordered for
// fallthrough. Function.Blocks is indexed by entity id; Function.Layout
// records the layout order.
package ir
