package rv32

import (
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

// Minimal encoders for building test programs by hand.

func encR(f7, rs2, rs1, f3, rd uint32) uint32 {
	return f7<<25 | rs2<<20 | rs1<<15 | f3<<12 | rd<<7 | 0x33
}

func encI(imm int32, rs1, f3, rd, op uint32) uint32 {
	return (uint32(imm)&0xfff)<<20 | rs1<<15 | f3<<12 | rd<<7 | op
}

func addi(rd, rs1 uint32, imm int32) uint32 { return encI(imm, rs1, 0, rd, 0x13) }
func lw(rd, rs1 uint32, imm int32) uint32   { return encI(imm, rs1, 2, rd, 0x03) }
func sw(rs2, rs1 uint32, imm int32) uint32 {
	u := uint32(imm) & 0xfff
	return (u>>5)<<25 | rs2<<20 | rs1<<15 | 2<<12 | (u&0x1f)<<7 | 0x23
}

func jal(rd uint32, off int32) uint32 {
	u := uint32(off)
	return ((u>>20)&1)<<31 | ((u>>1)&0x3ff)<<21 | ((u>>11)&1)<<20 | ((u>>12)&0xff)<<12 | rd<<7 | 0x6f
}

func beq(rs1, rs2 uint32, off int32) uint32 {
	u := uint32(off)
	return ((u>>12)&1)<<31 | ((u>>5)&0x3f)<<25 | rs2<<20 | rs1<<15 | ((u>>1)&0xf)<<8 | ((u>>11)&1)<<7 | 0x63
}

const (
	ecallWord  = 0x00000073
	ebreakWord = 0x00100073
)

// exitSeq appends "a7 = 93; ecall", halting with a0 as the exit value.
func exitSeq(prog []uint32) []uint32 {
	return append(prog, addi(RegA7, RegZero, EcallExit), ecallWord)
}

// run loads prog at address 0 and executes it on a fresh CPU. Registers
// in pre are set after Reset, before the first step.
func run(t *testing.T, cfg Config, pre map[int]uint32, prog []uint32) (uint32, error) {
	t.Helper()
	c := New(cfg)
	blob := make([]byte, len(prog)*4)
	for i, w := range prog {
		binary.LittleEndian.PutUint32(blob[i*4:], w)
	}
	if !c.Mem.WriteBlob(0, blob) {
		t.Fatal("program does not fit memory")
	}
	c.Reset(0)
	for r, v := range pre {
		c.Regs[r] = v
	}
	return c.Run()
}

func TestAddSubShift(t *testing.T) {
	// a0 = ((7 + 5) - 2) << 3 = 80
	prog := exitSeq([]uint32{
		addi(5, RegZero, 7),
		addi(6, RegZero, 5),
		encR(0, 6, 5, 0, 10),        // add a0, t0, t1
		addi(10, 10, -2),            // addi a0, a0, -2
		encI(3, 10, 1, 10, 0x13),    // slli a0, a0, 3
	})
	got, err := run(t, Config{}, nil, prog)
	if err != nil {
		t.Fatal(err)
	}
	if got != 80 {
		t.Errorf("exit = %d, want 80", got)
	}
}

func TestMulDiv(t *testing.T) {
	tests := []struct {
		name   string
		funct3 uint32
		a, b   uint32
		want   uint32
	}{
		{"mul", 0, 7, 6, 42},
		{"mul_wrap", 0, 0x40000000, 4, 0},
		{"mulh", 1, 0x40000000, 4, 1},
		{"mulh_neg", 1, 0xffffffff, 2, 0xffffffff}, // -1 * 2
		{"mulhu", 3, 0xffffffff, 2, 1},
		{"div", 4, 0xfffffff9, 2, 0xfffffffd}, // -7 / 2 = -3
		{"div_zero", 4, 10, 0, 0xffffffff},
		{"div_overflow", 4, 0x80000000, 0xffffffff, 0x80000000},
		{"divu_zero", 5, 10, 0, 0xffffffff},
		{"rem_zero", 7, 10, 0, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := exitSeq([]uint32{encR(1, 6, 5, tt.funct3, 10)})
			got, err := run(t, Config{}, map[int]uint32{5: tt.a, 6: tt.b}, prog)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("result = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestBranchLoop(t *testing.T) {
	// Sum 1..5: t0 counter, a0 accumulator.
	prog := exitSeq([]uint32{
		addi(5, RegZero, 5),
		addi(10, RegZero, 0),
		// loop:
		encR(0, 5, 10, 0, 10),   // add a0, a0, t0
		addi(5, 5, -1),          // addi t0, t0, -1
		beq(5, RegZero, 8),      // beq t0, x0, +8 (past the jal)
		jal(RegZero, -12),       // j loop
	})
	got, err := run(t, Config{}, nil, prog)
	if err != nil {
		t.Fatal(err)
	}
	if got != 15 {
		t.Errorf("exit = %d, want 15", got)
	}
}

func TestLoadStore(t *testing.T) {
	prog := exitSeq([]uint32{
		addi(5, RegZero, 0x123),
		sw(5, RegZero, 0x100),
		lw(10, RegZero, 0x100),
	})
	got, err := run(t, Config{}, nil, prog)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x123 {
		t.Errorf("exit = %#x, want 0x123", got)
	}
}

func TestTraps(t *testing.T) {
	tests := []struct {
		name string
		pre  map[int]uint32
		prog []uint32
		want TrapCode
	}{
		{"misaligned_load", nil, []uint32{lw(10, RegZero, 2)}, TrapMisalignedLoad},
		{"misaligned_store", nil, []uint32{sw(10, RegZero, 6)}, TrapMisalignedStore},
		{"oob_load", map[int]uint32{5: 0xfffffff0}, []uint32{lw(10, 5, 0)}, TrapOutOfBounds},
		{"oob_store", map[int]uint32{5: 0xfffffff0}, []uint32{sw(10, 5, 0)}, TrapOutOfBounds},
		{"unknown_opcode", nil, []uint32{0xffffffff}, TrapUnknownOpcode},
		{"ebreak", nil, []uint32{ebreakWord}, TrapBreakpoint},
		{"bad_ecall", map[int]uint32{RegA7: 7777}, []uint32{ecallWord}, TrapBadEcall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, Config{}, tt.pre, tt.prog)
			var trap *TrapError
			if !errors.As(err, &trap) {
				t.Fatalf("err = %v, want *TrapError", err)
			}
			if trap.Code != tt.want {
				t.Errorf("trap code = %v, want %v", trap.Code, tt.want)
			}
		})
	}
}

func TestInstructionLimit(t *testing.T) {
	prog := []uint32{jal(RegZero, 0)} // spin forever
	_, err := run(t, Config{MaxInstructions: 100}, nil, prog)
	var lim *LimitError
	if !errors.As(err, &lim) {
		t.Fatalf("err = %v, want *LimitError", err)
	}
	if lim.Limit != 100 {
		t.Errorf("limit = %d, want 100", lim.Limit)
	}
}

func TestPanicEcall(t *testing.T) {
	c := New(Config{})
	msg, file := "divide by zero", "shader.fx"
	c.Mem.WriteBlob(0x200, []byte(msg))
	c.Mem.WriteBlob(0x300, []byte(file))
	blob := make([]byte, 4)
	binary.LittleEndian.PutUint32(blob, ecallWord)
	c.Mem.WriteBlob(0, blob)
	c.Reset(0)
	c.Regs[RegA0] = 0x200
	c.Regs[RegA0+1] = uint32(len(msg))
	c.Regs[RegA0+2] = 0x300
	c.Regs[RegA0+3] = uint32(len(file))
	c.Regs[RegA0+4] = 42
	c.Regs[RegA7] = EcallPanic

	_, err := c.Run()
	var p *PanicError
	if !errors.As(err, &p) {
		t.Fatalf("err = %v, want *PanicError", err)
	}
	if p.Message != msg || p.File != file || p.Line != 42 {
		t.Errorf("panic = %q %q:%d, want %q %q:42", p.Message, p.File, p.Line, msg, file)
	}
}

func TestTrace(t *testing.T) {
	c := New(Config{TraceDepth: 4})
	prog := exitSeq([]uint32{
		addi(5, RegZero, 1),
		addi(10, RegZero, 2),
	})
	blob := make([]byte, len(prog)*4)
	for i, w := range prog {
		binary.LittleEndian.PutUint32(blob[i*4:], w)
	}
	c.Mem.WriteBlob(0, blob)
	c.Reset(0)
	if _, err := c.Run(); err != nil {
		t.Fatal(err)
	}
	dump := c.DumpTrace()
	if !strings.Contains(dump, "ecall") {
		t.Errorf("trace dump missing ecall:\n%s", dump)
	}
	if !strings.Contains(dump, "addi") {
		t.Errorf("trace dump missing addi:\n%s", dump)
	}
}

func TestImmediateDecoders(t *testing.T) {
	if got := immI(addi(0, 0, -1)); got != -1 {
		t.Errorf("immI = %d, want -1", got)
	}
	if got := int32(immB(beq(0, 0, -4))); got != -4 {
		t.Errorf("immB = %d, want -4", got)
	}
	if got := int32(immJ(jal(0, -12))); got != -12 {
		t.Errorf("immJ = %d, want -12", got)
	}
	if got := immS(sw(0, 0, -8)); got != -8 {
		t.Errorf("immS = %d, want -8", got)
	}
}
