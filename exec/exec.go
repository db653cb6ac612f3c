// Package exec defines the backend-agnostic call contract for compiled
// shader functions, plus the worker pool the validation harness runs
// independent programs on. Two backends implement the contract: the host
// compiler in hostvm and the RISC-V emulator wired up by rvgen. Together
// they are the correctness oracle for the fixed-point transform — there
// is no independent fixed-point reference implementation to compare
// against.
package exec

import (
	"fmt"
	"math"

	"github.com/light-player/fxc/ir"
)

// RunMode records how a module's numbers are encoded: ModeFloat is the
// untransformed float program, ModeFixed is the fix32-transformed program
// where former Float32 slots hold Q16.16 words.
type RunMode uint8

const (
	ModeFloat RunMode = iota
	ModeFixed
)

// String returns the mode name.
func (m RunMode) String() string {
	if m == ModeFixed {
		return "fixed"
	}
	return "float"
}

// Executable is one compiled shader module ready to call. Arguments and
// results are raw 32-bit words; EncodeArgs and DecodeScalar translate
// between them and host floats according to the RunMode. A call is fully
// synchronous: it runs to completion or to a typed error, with no
// suspension point and no cancellation.
type Executable interface {
	// CallVoid invokes a function with no results.
	CallVoid(name string, args []uint32) error

	// CallScalar invokes a function returning one scalar of the given
	// kind and returns the raw result word.
	CallScalar(name string, kind ir.Kind, args []uint32) (uint32, error)

	// CallVec invokes a function writing a dim-component vector
	// (dim 2, 3 or 4) through its output-buffer parameter and returns
	// the component words in order.
	CallVec(name string, dim int, args []uint32) ([]uint32, error)

	// CallMat is CallVec for a rows×cols matrix in column-major flat
	// layout: rows*cols words, column by column.
	CallMat(name string, rows, cols int, args []uint32) ([]uint32, error)

	// Mode reports the numeric encoding this executable was built for.
	Mode() RunMode

	// Close releases backend resources.
	Close() error
}

// EncodeArgs converts host-side float arguments into call words for a
// function with the given source-signature parameters. Only value slots
// are encoded; the output-buffer slot, when present, is supplied by the
// backend.
func EncodeArgs(mode RunMode, params []ir.Param, args []float64) ([]uint32, error) {
	want := 0
	for _, p := range params {
		if p.Role == ir.RoleValue {
			want++
		}
	}
	if len(args) != want {
		return nil, fmt.Errorf("have %d arguments, signature wants %d", len(args), want)
	}
	words := make([]uint32, 0, len(args))
	i := 0
	for _, p := range params {
		if p.Role != ir.RoleValue {
			continue
		}
		words = append(words, EncodeScalar(mode, p.Kind, args[i]))
		i++
	}
	return words, nil
}

// EncodeScalar converts one host float into a call word of the given
// source kind.
func EncodeScalar(mode RunMode, kind ir.Kind, v float64) uint32 {
	switch kind {
	case ir.KindFloat32:
		if mode == ModeFixed {
			return uint32(int32(v * 65536))
		}
		return math.Float32bits(float32(v))
	case ir.KindBool8:
		if v != 0 {
			return 1
		}
		return 0
	default:
		return uint32(int32(v))
	}
}

// DecodeScalar converts a raw result word of the given source kind back
// into a host float.
func DecodeScalar(mode RunMode, kind ir.Kind, w uint32) float64 {
	switch kind {
	case ir.KindFloat32:
		if mode == ModeFixed {
			return float64(int32(w)) / 65536
		}
		return float64(math.Float32frombits(w))
	case ir.KindUInt32:
		return float64(w)
	case ir.KindBool8:
		if w != 0 {
			return 1
		}
		return 0
	default:
		return float64(int32(w))
	}
}
