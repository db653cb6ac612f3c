// Package rvgen lowers integer-only IR functions (the fix32 transform's
// output, or any module that never touches floats) to RV32IM machine code
// and runs them on the rv32 emulator. It is the generic downstream code
// generator behind the narrow exec.Executable interface: a slot-per-value
// frame, no register allocation to speak of, correctness over speed.
package rvgen

import "fmt"

// Register indexes by ABI name.
const (
	x0 = 0
	ra = 1
	sp = 2
	t0 = 5
	t1 = 6
	t2 = 7
	t3 = 28
	t4 = 29
	t5 = 30
	a0 = 10
	a1 = 11
	a7 = 17
)

// asm accumulates instruction words and resolves labels in a second pass.
type asm struct {
	words  []uint32
	labels map[string]int
	fixups []fixup
}

type fixupKind uint8

const (
	fixJal fixupKind = iota
	fixBranch
)

type fixup struct {
	at    int
	label string
	kind  fixupKind
}

func newAsm() *asm {
	return &asm{labels: make(map[string]int)}
}

// pc returns the byte offset of the next instruction.
func (a *asm) pc() int { return len(a.words) * 4 }

func (a *asm) raw(w uint32) { a.words = append(a.words, w) }

// label binds a name to the next instruction. Names are generator
// controlled and unique by construction.
func (a *asm) label(name string) {
	a.labels[name] = len(a.words)
}

// finish resolves label fixups and returns the image words.
func (a *asm) finish() ([]uint32, error) {
	for _, f := range a.fixups {
		target, ok := a.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("rvgen: undefined label %q", f.label)
		}
		off := int32(target-f.at) * 4
		switch f.kind {
		case fixJal:
			if off < -(1<<20) || off >= 1<<20 {
				return nil, fmt.Errorf("rvgen: jump to %q out of range", f.label)
			}
			a.words[f.at] |= encodeJ(uint32(off))
		case fixBranch:
			if off < -(1<<12) || off >= 1<<12 {
				return nil, fmt.Errorf("rvgen: branch to %q out of range", f.label)
			}
			a.words[f.at] |= encodeB(uint32(off))
		}
	}
	return a.words, nil
}

func encodeR(f7, rs2, rs1, f3, rd, op uint32) uint32 {
	return f7<<25 | rs2<<20 | rs1<<15 | f3<<12 | rd<<7 | op
}

func encodeI(imm int32, rs1, f3, rd, op uint32) uint32 {
	return uint32(imm)<<20 | rs1<<15 | f3<<12 | rd<<7 | op
}

func encodeS(imm int32, rs2, rs1, f3, op uint32) uint32 {
	u := uint32(imm)
	return ((u>>5)&0x7f)<<25 | rs2<<20 | rs1<<15 | f3<<12 | (u&0x1f)<<7 | op
}

func encodeB(off uint32) uint32 {
	return ((off>>12)&1)<<31 | ((off>>5)&0x3f)<<25 | ((off>>1)&0xf)<<8 | ((off>>11)&1)<<7
}

func encodeJ(off uint32) uint32 {
	return ((off>>20)&1)<<31 | ((off>>1)&0x3ff)<<21 | ((off>>11)&1)<<20 | ((off>>12)&0xff)<<12
}

// R-type ALU ops.
func (a *asm) add(rd, rs1, rs2 uint32)  { a.raw(encodeR(0, rs2, rs1, 0, rd, 0x33)) }
func (a *asm) sub(rd, rs1, rs2 uint32)  { a.raw(encodeR(0x20, rs2, rs1, 0, rd, 0x33)) }
func (a *asm) sll(rd, rs1, rs2 uint32)  { a.raw(encodeR(0, rs2, rs1, 1, rd, 0x33)) }
func (a *asm) slt(rd, rs1, rs2 uint32)  { a.raw(encodeR(0, rs2, rs1, 2, rd, 0x33)) }
func (a *asm) sltu(rd, rs1, rs2 uint32) { a.raw(encodeR(0, rs2, rs1, 3, rd, 0x33)) }
func (a *asm) xor(rd, rs1, rs2 uint32)  { a.raw(encodeR(0, rs2, rs1, 4, rd, 0x33)) }
func (a *asm) srl(rd, rs1, rs2 uint32)  { a.raw(encodeR(0, rs2, rs1, 5, rd, 0x33)) }
func (a *asm) or(rd, rs1, rs2 uint32)   { a.raw(encodeR(0, rs2, rs1, 6, rd, 0x33)) }
func (a *asm) and(rd, rs1, rs2 uint32)  { a.raw(encodeR(0, rs2, rs1, 7, rd, 0x33)) }

// RV32M.
func (a *asm) mul(rd, rs1, rs2 uint32)   { a.raw(encodeR(1, rs2, rs1, 0, rd, 0x33)) }
func (a *asm) mulh(rd, rs1, rs2 uint32)  { a.raw(encodeR(1, rs2, rs1, 1, rd, 0x33)) }
func (a *asm) mulhu(rd, rs1, rs2 uint32) { a.raw(encodeR(1, rs2, rs1, 3, rd, 0x33)) }
func (a *asm) div(rd, rs1, rs2 uint32)   { a.raw(encodeR(1, rs2, rs1, 4, rd, 0x33)) }
func (a *asm) divu(rd, rs1, rs2 uint32)  { a.raw(encodeR(1, rs2, rs1, 5, rd, 0x33)) }
func (a *asm) remu(rd, rs1, rs2 uint32)  { a.raw(encodeR(1, rs2, rs1, 7, rd, 0x33)) }

// I-type.
func (a *asm) addi(rd, rs1 uint32, imm int32)  { a.raw(encodeI(imm&0xfff, rs1, 0, rd, 0x13)) }
func (a *asm) slti(rd, rs1 uint32, imm int32)  { a.raw(encodeI(imm&0xfff, rs1, 2, rd, 0x13)) }
func (a *asm) sltiu(rd, rs1 uint32, imm int32) { a.raw(encodeI(imm&0xfff, rs1, 3, rd, 0x13)) }
func (a *asm) xori(rd, rs1 uint32, imm int32)  { a.raw(encodeI(imm&0xfff, rs1, 4, rd, 0x13)) }
func (a *asm) ori(rd, rs1 uint32, imm int32)   { a.raw(encodeI(imm&0xfff, rs1, 6, rd, 0x13)) }
func (a *asm) slli(rd, rs1, sh uint32)         { a.raw(encodeI(int32(sh&31), rs1, 1, rd, 0x13)) }
func (a *asm) srli(rd, rs1, sh uint32)         { a.raw(encodeI(int32(sh&31), rs1, 5, rd, 0x13)) }
func (a *asm) srai(rd, rs1, sh uint32)         { a.raw(encodeI(int32(sh&31)|0x400, rs1, 5, rd, 0x13)) }

func (a *asm) lw(rd, rs1 uint32, off int32) { a.raw(encodeI(off&0xfff, rs1, 2, rd, 0x03)) }
func (a *asm) sw(rs2, rs1 uint32, off int32) {
	a.raw(encodeS(off, rs2, rs1, 2, 0x23))
}

func (a *asm) lui(rd, imm20 uint32) { a.raw(imm20<<12 | rd<<7 | 0x37) }
func (a *asm) jalr(rd, rs1 uint32, off int32) {
	a.raw(encodeI(off&0xfff, rs1, 0, rd, 0x67))
}
func (a *asm) ecall() { a.raw(0x00000073) }

// li materializes a full 32-bit constant with lui+addi, or a single addi
// when the constant fits 12 bits.
func (a *asm) li(rd uint32, v int32) {
	if v >= -2048 && v < 2048 {
		a.addi(rd, x0, v)
		return
	}
	upper := uint32(v) >> 12
	low := v & 0xfff
	if low >= 0x800 {
		// addi sign-extends; bump the upper part to compensate.
		upper++
		low -= 0x1000
	}
	a.lui(rd, upper&0xfffff)
	if low != 0 {
		a.addi(rd, rd, low)
	}
}

func (a *asm) mv(rd, rs uint32)   { a.addi(rd, rs, 0) }
func (a *asm) seqz(rd, rs uint32) { a.sltiu(rd, rs, 1) }
func (a *asm) snez(rd, rs uint32) { a.sltu(rd, x0, rs) }
func (a *asm) ret()               { a.jalr(x0, ra, 0) }

// Label-taking control flow; offsets resolve in finish.

func (a *asm) jal(rd uint32, label string) {
	a.fixups = append(a.fixups, fixup{at: len(a.words), label: label, kind: fixJal})
	a.raw(rd<<7 | 0x6f)
}

func (a *asm) j(label string)    { a.jal(x0, label) }
func (a *asm) call(label string) { a.jal(ra, label) }

func (a *asm) branch(f3, rs1, rs2 uint32, label string) {
	a.fixups = append(a.fixups, fixup{at: len(a.words), label: label, kind: fixBranch})
	a.raw(rs2<<20 | rs1<<15 | f3<<12 | 0x63)
}

func (a *asm) beq(rs1, rs2 uint32, label string)  { a.branch(0, rs1, rs2, label) }
func (a *asm) bne(rs1, rs2 uint32, label string)  { a.branch(1, rs1, rs2, label) }
func (a *asm) blt(rs1, rs2 uint32, label string)  { a.branch(4, rs1, rs2, label) }
func (a *asm) bge(rs1, rs2 uint32, label string)  { a.branch(5, rs1, rs2, label) }
func (a *asm) bltu(rs1, rs2 uint32, label string) { a.branch(6, rs1, rs2, label) }
func (a *asm) beqz(rs1 uint32, label string)      { a.beq(rs1, x0, label) }
func (a *asm) bnez(rs1 uint32, label string)      { a.bne(rs1, x0, label) }
