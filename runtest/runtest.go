// Package runtest runs textual regression fixtures: IR modules annotated
// with expected-output directives in comments. Each check directive is
// evaluated three ways — the float program on the host backend, the
// fixed-point transform on the host backend, and the fixed-point transform
// on the RISC-V emulator — and the two fixed-point backends must agree on
// the exact result words. There is no independent fixed-point reference;
// the cross-backend agreement is the correctness oracle.
package runtest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/light-player/fxc/diag"
	"github.com/light-player/fxc/ir"
)

// Check is one "// run:" directive: call a function with literal
// arguments and compare the decoded scalar result.
type Check struct {
	// Line is the source line failures are attributed to: the
	// directive's own line plus its @+N/@-N offset, when present.
	Line int
	Name string
	Args []float64
	Want float64

	// Tol is the allowed absolute difference for the fixed-point
	// result. Zero means the decoded results must match exactly.
	Tol float64

	offset int
}

// Fixture is one parsed fixture file: the IR source (directives live in
// comments, so the IR parser sees the same text) plus its directives.
type Fixture struct {
	Name   string
	Source string
	Checks []Check

	// WantErr is the expected diagnostic code of a negative fixture:
	// parsing or transforming the module must fail with this code and
	// no checks run.
	WantErr string
}

const (
	runPrefix = "// run:"
	errPrefix = "// error:"
)

// ParseFixture extracts directives from a fixture file. Directive syntax:
//
//	// run: add(2.0, 3.0) == 5.0
//	// run: third(1.0) ~= 0.3333 (tolerance: 0.001)
//	// run: @+3 clamp(5.0, 0.0, 3.0) == 3.0
//	// error: E0201
//
// An @+N or @-N prefix attributes failures of that check to a line N
// below or above the directive, for directives kept next to the code
// they exercise. The error directive's code may carry a trailing note
// after a colon, which is ignored.
func ParseFixture(name, src string) (*Fixture, error) {
	f := &Fixture{Name: name, Source: src}
	for i, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		no := i + 1
		switch {
		case strings.HasPrefix(line, runPrefix):
			chk, err := parseCheck(strings.TrimSpace(strings.TrimPrefix(line, runPrefix)))
			if err != nil {
				return nil, diag.Errorf(diag.CodeParse,
					&diag.Pos{File: name, Line: no, Col: 1}, "%s", err)
			}
			chk.Line = no + chk.offset
			f.Checks = append(f.Checks, chk)
		case strings.HasPrefix(line, errPrefix):
			if f.WantErr != "" {
				return nil, diag.Errorf(diag.CodeParse,
					&diag.Pos{File: name, Line: no, Col: 1}, "multiple error directives")
			}
			code := strings.TrimSpace(strings.TrimPrefix(line, errPrefix))
			if c, _, found := strings.Cut(code, ":"); found {
				code = strings.TrimSpace(c)
			}
			f.WantErr = code
		}
	}
	if f.WantErr != "" && len(f.Checks) > 0 {
		return nil, diag.Errorf(diag.CodeParse, &diag.Pos{File: name, Line: 1, Col: 1},
			"error fixture also has run directives")
	}
	if f.WantErr == "" && len(f.Checks) == 0 {
		return nil, diag.Errorf(diag.CodeParse, &diag.Pos{File: name, Line: 1, Col: 1},
			"fixture has no directives")
	}
	return f, nil
}

func parseCheck(text string) (Check, error) {
	var chk Check
	if strings.HasPrefix(text, "@") {
		off, rest, err := parseOffset(text)
		if err != nil {
			return chk, err
		}
		chk.offset = off
		text = rest
	}
	op := "=="
	idx := strings.Index(text, "==")
	if t := strings.Index(text, "~="); t >= 0 && (idx < 0 || t < idx) {
		idx, op = t, "~="
	}
	if idx < 0 {
		return chk, fmt.Errorf("missing == or ~= in %q", text)
	}
	call := strings.TrimSpace(text[:idx])
	expect := strings.TrimSpace(text[idx+2:])

	open := strings.IndexByte(call, '(')
	if open < 1 || !strings.HasSuffix(call, ")") {
		return chk, fmt.Errorf("malformed call %q", call)
	}
	chk.Name = strings.TrimSpace(call[:open])
	argText := strings.TrimSpace(call[open+1 : len(call)-1])
	if argText != "" {
		for _, part := range strings.Split(argText, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return chk, fmt.Errorf("malformed argument %q", part)
			}
			chk.Args = append(chk.Args, v)
		}
	}

	if op == "~=" {
		tolOpen := strings.Index(expect, "(tolerance:")
		if tolOpen < 0 || !strings.HasSuffix(expect, ")") {
			return chk, fmt.Errorf("~= needs a (tolerance: eps) clause in %q", expect)
		}
		tolText := strings.TrimSpace(expect[tolOpen+len("(tolerance:") : len(expect)-1])
		tol, err := strconv.ParseFloat(tolText, 64)
		if err != nil || tol <= 0 {
			return chk, fmt.Errorf("malformed tolerance %q", tolText)
		}
		chk.Tol = tol
		expect = strings.TrimSpace(expect[:tolOpen])
	}
	want, err := strconv.ParseFloat(expect, 64)
	if err != nil {
		return chk, fmt.Errorf("malformed expected value %q", expect)
	}
	chk.Want = want
	return chk, nil
}

// parseOffset splits an "@+N expr" or "@-N expr" prefix off a directive.
func parseOffset(text string) (int, string, error) {
	body, rest, found := strings.Cut(text[1:], " ")
	if !found {
		return 0, "", fmt.Errorf("offset directive %q has no expression", text)
	}
	if !strings.HasPrefix(body, "+") && !strings.HasPrefix(body, "-") {
		return 0, "", fmt.Errorf("malformed offset %q, want @+N or @-N", "@"+body)
	}
	off, err := strconv.Atoi(body)
	if err != nil {
		return 0, "", fmt.Errorf("malformed offset %q, want @+N or @-N", "@"+body)
	}
	return off, strings.TrimSpace(rest), nil
}

// matches reports whether a decoded result satisfies the check.
func (c *Check) matches(got float64) bool {
	if c.Tol > 0 {
		return math.Abs(got-c.Want) <= c.Tol
	}
	return got == c.Want
}

// callString renders the check's call for error messages.
func (c *Check) callString() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = ir.FormatFloat32(float32(a))
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(parts, ", "))
}
