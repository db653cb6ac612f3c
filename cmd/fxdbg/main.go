// Command fxdbg is an interactive monitor for the RISC-V emulator. It
// compiles a float IR module to fixed-point RV32 code, loads it into an
// emulator and drops into a raw-mode prompt for stepping, register and
// memory inspection, and trace review.
//
// Usage:
//
//	fxdbg shader.fx
//
// Commands:
//
//	call <fn> [args...]   prepare a call with float arguments
//	s [n]                 step n instructions (default 1)
//	c                     run until exit, trap or limit
//	r                     dump registers
//	m <addr> [words]      dump memory
//	d <addr> [words]      disassemble
//	t                     dump the retired-instruction trace
//	q                     quit
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/light-player/fxc/exec"
	"github.com/light-player/fxc/fix32"
	"github.com/light-player/fxc/ir"
	"github.com/light-player/fxc/rv32"
	"github.com/light-player/fxc/rvgen"
)

const (
	outBufAddr = 0x100
	codeBase   = 0x1000
)

var memSize = flag.Uint("mem", rv32.DefaultMemSize, "guest memory size in bytes")

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: fxdbg [options] <input.fx>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	source, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}
	floatMod, err := ir.ParseModuleFile(flag.Arg(0), string(source))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Parse error: %v\n", err)
		os.Exit(1)
	}
	fixedMod, err := fix32.Transform(floatMod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Transform error: %v\n", err)
		os.Exit(1)
	}
	img, err := rvgen.Generate(fixedMod)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Codegen error: %v\n", err)
		os.Exit(1)
	}

	dbg := &debugger{
		img: img,
		mod: floatMod,
		cpu: rv32.New(rv32.Config{MemSize: uint32(*memSize)}),
	}
	if !dbg.cpu.Mem.WriteBlob(codeBase, img.Code) {
		fmt.Fprintln(os.Stderr, "Error: image does not fit guest memory")
		os.Exit(1)
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: raw mode: %v\n", err)
		os.Exit(1)
	}
	defer term.Restore(fd, oldState)

	t := term.NewTerminal(stdio{}, "fxdbg> ")
	fmt.Fprintf(t, "loaded %s: %d bytes of code, %d functions\n",
		flag.Arg(0), len(img.Code), len(img.Entries))
	for name := range img.Entries {
		fmt.Fprintf(t, "  %s\n", name)
	}

	for {
		line, err := t.ReadLine()
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintf(t, "read: %v\n", err)
			return
		}
		if !dbg.dispatch(t, strings.Fields(line)) {
			return
		}
	}
}

// stdio adapts the process streams to the terminal's ReadWriter.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

type debugger struct {
	img *rvgen.Image
	mod *ir.Module // float module: source signatures drive arg encoding
	cpu *rv32.CPU

	// current call, for decoding the result at exit
	fn     *ir.Function
	halted bool
}

// dispatch executes one command; it returns false to quit.
func (d *debugger) dispatch(t *term.Terminal, fields []string) bool {
	if len(fields) == 0 {
		return true
	}
	switch fields[0] {
	case "q", "quit":
		return false
	case "call":
		d.cmdCall(t, fields[1:])
	case "s", "step":
		d.cmdStep(t, fields[1:])
	case "c", "cont":
		d.cmdContinue(t)
	case "r", "regs":
		fmt.Fprint(t, d.cpu.DumpRegisters())
	case "m", "mem":
		d.cmdMem(t, fields[1:])
	case "d", "disasm":
		d.cmdDisasm(t, fields[1:])
	case "t", "trace":
		fmt.Fprint(t, d.cpu.DumpTrace())
	default:
		fmt.Fprintf(t, "unknown command %q\n", fields[0])
	}
	return true
}

func (d *debugger) cmdCall(t *term.Terminal, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(t, "call <fn> [args...]")
		return
	}
	name := args[0]
	entry, ok := d.img.Entries[name]
	if !ok {
		fmt.Fprintf(t, "no function %q\n", name)
		return
	}
	fn := d.mod.FunctionByName(name)

	vals := make([]float64, len(args)-1)
	for i, a := range args[1:] {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			fmt.Fprintf(t, "malformed argument %q\n", a)
			return
		}
		vals[i] = v
	}
	words, err := exec.EncodeArgs(exec.ModeFixed, fn.Sig.Params, vals)
	if err != nil {
		fmt.Fprintf(t, "%v\n", err)
		return
	}

	d.cpu.Reset(codeBase + entry)
	d.cpu.Regs[rv32.RegRA] = codeBase
	slot := 0
	for _, prm := range fn.Sig.Params {
		if prm.Role == ir.RoleOutBuffer {
			for off := uint32(0); off < 64; off += 4 {
				d.cpu.Mem.StoreWord(outBufAddr+off, 0)
			}
			d.cpu.Regs[rv32.RegA0+slot] = outBufAddr
		} else {
			d.cpu.Regs[rv32.RegA0+slot] = words[0]
			words = words[1:]
		}
		slot++
	}
	d.fn = fn
	d.halted = false
	fmt.Fprintf(t, "pc = %08x\n", d.cpu.PC)
}

func (d *debugger) cmdStep(t *term.Terminal, args []string) {
	if d.halted {
		fmt.Fprintln(t, "halted; use call to start again")
		return
	}
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			fmt.Fprintf(t, "malformed count %q\n", args[0])
			return
		}
		n = v
	}
	for i := 0; i < n; i++ {
		done, exit, err := d.cpu.Step()
		if err != nil {
			fmt.Fprintf(t, "%v\n", err)
			d.halted = true
			return
		}
		if done {
			d.reportExit(t, exit)
			return
		}
	}
	d.showNext(t)
}

func (d *debugger) cmdContinue(t *term.Terminal) {
	if d.halted {
		fmt.Fprintln(t, "halted; use call to start again")
		return
	}
	exit, err := d.cpu.Run()
	if err != nil {
		fmt.Fprintf(t, "%v\n", err)
		d.halted = true
		return
	}
	d.reportExit(t, exit)
}

func (d *debugger) reportExit(t *term.Terminal, exit uint32) {
	d.halted = true
	fmt.Fprintf(t, "exit after %d instructions, a0 = %08x", d.cpu.Retired(), exit)
	if d.fn != nil && len(d.fn.Sig.Results) == 1 {
		v := exec.DecodeScalar(exec.ModeFixed, d.fn.Sig.Results[0], exit)
		fmt.Fprintf(t, " (%g)", v)
	}
	fmt.Fprintln(t)
}

func (d *debugger) showNext(t *term.Terminal) {
	if w, ok := d.cpu.Mem.LoadWord(d.cpu.PC); ok {
		fmt.Fprintf(t, "%08x:  %s\n", d.cpu.PC, rv32.Disassemble(d.cpu.PC, w))
	} else {
		fmt.Fprintf(t, "pc = %08x (unmapped)\n", d.cpu.PC)
	}
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	return uint32(v), err
}

func (d *debugger) cmdMem(t *term.Terminal, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(t, "m <addr> [words]")
		return
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		fmt.Fprintf(t, "malformed address %q\n", args[0])
		return
	}
	n := uint32(16)
	if len(args) > 1 {
		v, err := parseAddr(args[1])
		if err != nil {
			fmt.Fprintf(t, "malformed count %q\n", args[1])
			return
		}
		n = v
	}
	fmt.Fprint(t, d.cpu.DumpMemory(addr, n*4))
}

func (d *debugger) cmdDisasm(t *term.Terminal, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(t, "d <addr> [words]")
		return
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		fmt.Fprintf(t, "malformed address %q\n", args[0])
		return
	}
	addr &^= 3
	n := uint32(8)
	if len(args) > 1 {
		v, err := parseAddr(args[1])
		if err != nil {
			fmt.Fprintf(t, "malformed count %q\n", args[1])
			return
		}
		n = v
	}
	for i := uint32(0); i < n; i++ {
		pc := addr + i*4
		blob, ok := d.cpu.Mem.ReadBlob(pc, 4)
		if !ok {
			fmt.Fprintf(t, "%08x: out of bounds\n", pc)
			return
		}
		w := binary.LittleEndian.Uint32(blob)
		fmt.Fprintf(t, "%08x:  %08x  %s\n", pc, w, rv32.Disassemble(pc, w))
	}
}
