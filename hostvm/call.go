package hostvm

import (
	"fmt"

	"github.com/light-player/fxc/ir"
)

func (p *Program) lookup(name string) (*compiledFunc, error) {
	for _, cf := range p.fns {
		if cf.fn.Name == name {
			return cf, nil
		}
	}
	return nil, fmt.Errorf("hostvm: no function %q", name)
}

// placeArgs interleaves the caller's value words with the output-buffer
// pointer according to the signature's slot order, so the physical
// argument convention matches the compiled entry block.
func placeArgs(sig ir.Signature, args []uint32, bufAddr uint32) ([]uint32, error) {
	full := make([]uint32, 0, len(sig.Params))
	i := 0
	for _, prm := range sig.Params {
		if prm.Role == ir.RoleOutBuffer {
			full = append(full, bufAddr)
			continue
		}
		if i >= len(args) {
			return nil, fmt.Errorf("hostvm: not enough arguments: have %d", len(args))
		}
		full = append(full, args[i])
		i++
	}
	if i != len(args) {
		return nil, fmt.Errorf("hostvm: too many arguments: have %d, want %d", len(args), i)
	}
	return full, nil
}

// CallVoid implements exec.Executable.
func (p *Program) CallVoid(name string, args []uint32) error {
	cf, err := p.lookup(name)
	if err != nil {
		return err
	}
	full, err := placeArgs(cf.fn.Sig, args, 0)
	if err != nil {
		return err
	}
	_, err = p.run(cf, full)
	return err
}

// CallScalar implements exec.Executable.
func (p *Program) CallScalar(name string, _ ir.Kind, args []uint32) (uint32, error) {
	cf, err := p.lookup(name)
	if err != nil {
		return 0, err
	}
	if len(cf.fn.Sig.Results) != 1 {
		return 0, fmt.Errorf("hostvm: %s returns %d values, want 1", name, len(cf.fn.Sig.Results))
	}
	full, err := placeArgs(cf.fn.Sig, args, 0)
	if err != nil {
		return 0, err
	}
	ret, err := p.run(cf, full)
	if err != nil {
		return 0, err
	}
	return ret[0], nil
}

// callBuffered runs a function whose multi-component result arrives
// through the output-buffer parameter, and reads back n words.
func (p *Program) callBuffered(name string, n int, args []uint32) ([]uint32, error) {
	cf, err := p.lookup(name)
	if err != nil {
		return nil, err
	}
	hasBuf := false
	for _, prm := range cf.fn.Sig.Params {
		if prm.Role == ir.RoleOutBuffer {
			hasBuf = true
		}
	}
	if !hasBuf {
		return nil, fmt.Errorf("hostvm: %s has no output-buffer parameter", name)
	}
	full, err := placeArgs(cf.fn.Sig, args, 0)
	if err != nil {
		return nil, err
	}
	m := &machine{prog: p}
	if _, err := p.invoke(m, cf, full); err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		w, err := m.loadWord(uint32(i * 4))
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

// CallVec implements exec.Executable.
func (p *Program) CallVec(name string, dim int, args []uint32) ([]uint32, error) {
	if dim < 2 || dim > 4 {
		return nil, fmt.Errorf("hostvm: vector dimension %d out of range", dim)
	}
	return p.callBuffered(name, dim, args)
}

// CallMat implements exec.Executable. The result is column-major: rows
// words per column, cols columns.
func (p *Program) CallMat(name string, rows, cols int, args []uint32) ([]uint32, error) {
	if rows < 2 || rows > 4 || cols < 2 || cols > 4 {
		return nil, fmt.Errorf("hostvm: matrix shape %dx%d out of range", rows, cols)
	}
	return p.callBuffered(name, rows*cols, args)
}
