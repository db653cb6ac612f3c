package rvgen

import (
	"fmt"

	"github.com/light-player/fxc/exec"
	"github.com/light-player/fxc/ir"
	"github.com/light-player/fxc/rv32"
)

// Guest memory layout: the output buffer sits below the code so neither
// can grow into the other, and the stack descends from the top of memory.
const (
	outBufAddr = 0x100
	outBufSize = 64
	codeBase   = 0x1000
)

// Machine runs a generated Image on the rv32 emulator behind the
// exec.Executable contract. The code is loaded once; each call resets the
// registers and jumps to the function entry with ra pointing at the exit
// stub, so a top-level return halts the emulator with the result in a0.
type Machine struct {
	img  *Image
	mode exec.RunMode
	cpu  *rv32.CPU
}

// NewMachine loads img into a fresh emulator. A zero Config takes the
// rv32 defaults.
func NewMachine(img *Image, mode exec.RunMode, cfg rv32.Config) (*Machine, error) {
	cpu := rv32.New(cfg)
	if !cpu.Mem.WriteBlob(codeBase, img.Code) {
		return nil, fmt.Errorf("rvgen: image (%d bytes) does not fit guest memory", len(img.Code))
	}
	return &Machine{img: img, mode: mode, cpu: cpu}, nil
}

// Mode implements exec.Executable.
func (m *Machine) Mode() exec.RunMode { return m.mode }

// Close implements exec.Executable.
func (m *Machine) Close() error { return nil }

func (m *Machine) lookup(name string) (*ir.Function, uint32, error) {
	entry, ok := m.img.Entries[name]
	if !ok {
		return nil, 0, fmt.Errorf("rvgen: no function %q", name)
	}
	fn := m.img.mod.FunctionByName(name)
	if fn == nil {
		return nil, 0, fmt.Errorf("rvgen: no function %q", name)
	}
	return fn, entry, nil
}

// call resets the hart, places the argument words in a0.. with the
// output-buffer address interleaved at its signature slot, and runs to a
// terminal state. The returned word is a0 at exit.
func (m *Machine) call(fn *ir.Function, entry uint32, args []uint32) (uint32, error) {
	full := make([]uint32, 0, len(fn.Sig.Params))
	i := 0
	for _, prm := range fn.Sig.Params {
		if prm.Role == ir.RoleOutBuffer {
			full = append(full, outBufAddr)
			continue
		}
		if i >= len(args) {
			return 0, fmt.Errorf("rvgen: not enough arguments: have %d", len(args))
		}
		full = append(full, args[i])
		i++
	}
	if i != len(args) {
		return 0, fmt.Errorf("rvgen: too many arguments: have %d, want %d", len(args), i)
	}
	if len(full) > maxCallArgs {
		return 0, fmt.Errorf("rvgen: %s: %d arguments, max %d", fn.Name, len(full), maxCallArgs)
	}

	c := m.cpu
	c.Reset(codeBase + entry)
	c.Regs[rv32.RegRA] = codeBase // exit stub at image offset 0
	for j, w := range full {
		c.Regs[rv32.RegA0+j] = w
	}
	c.Mem.WriteBlob(outBufAddr, make([]byte, outBufSize))
	return c.Run()
}

// CallVoid implements exec.Executable.
func (m *Machine) CallVoid(name string, args []uint32) error {
	fn, entry, err := m.lookup(name)
	if err != nil {
		return err
	}
	_, err = m.call(fn, entry, args)
	return err
}

// CallScalar implements exec.Executable.
func (m *Machine) CallScalar(name string, _ ir.Kind, args []uint32) (uint32, error) {
	fn, entry, err := m.lookup(name)
	if err != nil {
		return 0, err
	}
	if len(fn.Sig.Results) != 1 {
		return 0, fmt.Errorf("rvgen: %s returns %d values, want 1", name, len(fn.Sig.Results))
	}
	return m.call(fn, entry, args)
}

// callBuffered runs a function whose multi-component result arrives
// through the output-buffer parameter and reads back n words.
func (m *Machine) callBuffered(name string, n int, args []uint32) ([]uint32, error) {
	fn, entry, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	hasBuf := false
	for _, prm := range fn.Sig.Params {
		if prm.Role == ir.RoleOutBuffer {
			hasBuf = true
		}
	}
	if !hasBuf {
		return nil, fmt.Errorf("rvgen: %s has no output-buffer parameter", name)
	}
	if _, err := m.call(fn, entry, args); err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		w, ok := m.cpu.Mem.LoadWord(outBufAddr + uint32(i*4))
		if !ok {
			return nil, fmt.Errorf("rvgen: output buffer read out of bounds")
		}
		out[i] = w
	}
	return out, nil
}

// CallVec implements exec.Executable.
func (m *Machine) CallVec(name string, dim int, args []uint32) ([]uint32, error) {
	if dim < 2 || dim > 4 {
		return nil, fmt.Errorf("rvgen: vector dimension %d out of range", dim)
	}
	return m.callBuffered(name, dim, args)
}

// CallMat implements exec.Executable. The result is column-major: rows
// words per column, cols columns.
func (m *Machine) CallMat(name string, rows, cols int, args []uint32) ([]uint32, error) {
	if rows < 2 || rows > 4 || cols < 2 || cols > 4 {
		return nil, fmt.Errorf("rvgen: matrix shape %dx%d out of range", rows, cols)
	}
	return m.callBuffered(name, rows*cols, args)
}
