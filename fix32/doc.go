// Package fix32 rewrites SSA functions that compute on 32-bit floats into
// semantically equivalent SSA functions that compute on Q16.16 fixed-point
// integers, for targets without a floating-point unit.
//
// The transform is two-phase at module scope: every function's signature
// is converted and registered in the Context's id maps before any
// function's body is converted, so cross-function calls resolve no matter
// which order bodies are processed in. Converting a single body is
// strictly sequential: value numbering and block layout are order
// dependent.
//
// Agreement with float math is bounded-error, not bit-exact: results
// carry about 2^-16 of representation error plus magnitude-proportional
// error through multiply and divide. NaN and infinity have no fixed-point
// representation and NaN-sensitive comparison conditions are approximated
// by their nearest ordered counterparts.
package fix32
