package runtest

import (
	"context"
	"errors"
	"fmt"

	"github.com/light-player/fxc/diag"
	"github.com/light-player/fxc/exec"
	"github.com/light-player/fxc/fix32"
	"github.com/light-player/fxc/hostvm"
	"github.com/light-player/fxc/ir"
	"github.com/light-player/fxc/rv32"
	"github.com/light-player/fxc/rvgen"
)

// Run evaluates the fixture. Positive fixtures return one error per
// failed check (nil-free on success); negative fixtures return a single
// error when the expected diagnostic did not occur.
func (f *Fixture) Run(workers int) []error {
	floatMod, err := ir.ParseModuleFile(f.Name, f.Source)
	if err != nil {
		return f.expectedFailure(err)
	}
	fixedMod, err := fix32.Transform(floatMod)
	if err != nil {
		return f.expectedFailure(err)
	}
	if f.WantErr != "" {
		return []error{fmt.Errorf("%s: expected error %s, fixture compiled cleanly", f.Name, f.WantErr)}
	}

	hostFloat, err := hostvm.Compile(floatMod, exec.ModeFloat)
	if err != nil {
		return []error{err}
	}
	hostFixed, err := hostvm.Compile(fixedMod, exec.ModeFixed)
	if err != nil {
		return []error{err}
	}
	img, err := rvgen.Generate(fixedMod)
	if err != nil {
		return []error{err}
	}

	// Each worker owns one emulator instance; the host programs are
	// compiled once and safe to share, every call gets a fresh machine.
	pool := exec.NewPool(workers, func() (exec.Executable, error) {
		return rvgen.NewMachine(img, exec.ModeFixed, rv32.Config{})
	})
	jobs := make([]exec.Job, len(f.Checks))
	for i := range f.Checks {
		chk := &f.Checks[i]
		fn := floatMod.FunctionByName(chk.Name)
		if fn == nil {
			name := chk.Name
			jobs[i] = func(exec.Executable) error {
				return fmt.Errorf("no function %q", name)
			}
			continue
		}
		sig := fn.Sig
		jobs[i] = func(emu exec.Executable) error {
			return f.check(chk, sig, hostFloat, hostFixed, emu)
		}
	}

	results := pool.Run(context.Background(), jobs)
	var failures []error
	for i, err := range results {
		if err != nil {
			failures = append(failures, fmt.Errorf("%s:%d: %s: %w",
				f.Name, f.Checks[i].Line, f.Checks[i].callString(), err))
		}
	}
	return failures
}

// expectedFailure resolves a compile-stage error against the fixture's
// error directive.
func (f *Fixture) expectedFailure(err error) []error {
	if f.WantErr == "" {
		return []error{err}
	}
	var de *diag.Error
	if !errors.As(err, &de) {
		return []error{fmt.Errorf("%s: expected %s, got untyped error: %w", f.Name, f.WantErr, err)}
	}
	if de.Code != f.WantErr {
		return []error{fmt.Errorf("%s: expected %s, got %s: %w", f.Name, f.WantErr, de.Code, err)}
	}
	return nil
}

// check runs one directive on all three backends. The two fixed-point
// backends must produce the same exact result words; the decoded results
// must satisfy the directive against the expected value.
func (f *Fixture) check(chk *Check, sig ir.Signature, hostFloat, hostFixed, emu exec.Executable) error {
	if len(sig.Results) != 1 {
		return fmt.Errorf("%s returns %d values, directives check one scalar", chk.Name, len(sig.Results))
	}
	kind := sig.Results[0]

	floatArgs, err := exec.EncodeArgs(exec.ModeFloat, sig.Params, chk.Args)
	if err != nil {
		return err
	}
	fixedArgs, err := exec.EncodeArgs(exec.ModeFixed, sig.Params, chk.Args)
	if err != nil {
		return err
	}

	fw, err := hostFloat.CallScalar(chk.Name, kind, floatArgs)
	if err != nil {
		return fmt.Errorf("host float: %w", err)
	}
	hw, err := hostFixed.CallScalar(chk.Name, kind, fixedArgs)
	if err != nil {
		return fmt.Errorf("host fixed: %w", err)
	}
	ew, err := emu.CallScalar(chk.Name, kind, fixedArgs)
	if err != nil {
		return fmt.Errorf("emulator: %w", err)
	}

	if hw != ew {
		return fmt.Errorf("fixed backends disagree: host %#x, emulator %#x", hw, ew)
	}
	if got := exec.DecodeScalar(exec.ModeFloat, kind, fw); !chk.matches(got) {
		return fmt.Errorf("float result %v, want %v", got, chk.Want)
	}
	if got := exec.DecodeScalar(exec.ModeFixed, kind, hw); !chk.matches(got) {
		return fmt.Errorf("fixed result %v, want %v", got, chk.Want)
	}
	return nil
}
