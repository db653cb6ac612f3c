// Package diag defines the structured error shared by every pipeline
// stage, so error presentation is uniform from the frontend through the
// fixed-point transform to the regression harness.
package diag

import "fmt"

// Pos is a source location. Line and Col are 1-based.
type Pos struct {
	File string
	Line int
	Col  int
}

// String renders the location in file:line:col form.
func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Error is a structured diagnostic: a stable code, a message and an
// optional source location. The code is what negative regression tests
// match against.
type Error struct {
	// Code is the stable error code, e.g. "E0201".
	Code string

	// Message describes the error.
	Message string

	// Pos optionally identifies where the error originates.
	Pos *Pos
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Pos != nil {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds an Error with a formatted message.
func Errorf(code string, pos *Pos, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// Stable error codes. The 01xx range is structural, 02xx conversion,
// 03xx parsing, 04xx runtime.
const (
	// CodeStructural covers signature and parameter-count mismatches
	// and unresolved value mappings.
	CodeStructural = "E0101"

	// CodeUnresolvedValue is an operand with no mapping in the value
	// table: def-before-use was violated somewhere upstream.
	CodeUnresolvedValue = "E0102"

	// CodeParamCount is an entry-block/signature arity mismatch.
	CodeParamCount = "E0103"

	// CodeUnsupported is an opcode with no conversion rule.
	CodeUnsupported = "E0201"

	// CodeParse is a malformed textual IR module.
	CodeParse = "E0301"

	// CodeRuntime is an emulator-reported fault.
	CodeRuntime = "E0401"
)
