package rv32

import (
	"fmt"
	"strings"
)

// DumpRegisters renders the register file, four per line, with ABI names.
func (c *CPU) DumpRegisters() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pc   = %08x  retired = %d\n", c.PC, c.retired)
	for i := 0; i < 32; i += 4 {
		for j := i; j < i+4; j++ {
			fmt.Fprintf(&sb, "%-4s = %08x  ", RegName(uint32(j)), c.Regs[j])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// DumpMemory renders a hexdump of [addr, addr+n), clamped to memory.
func (c *CPU) DumpMemory(addr, n uint32) string {
	if addr >= c.Mem.Size() {
		return fmt.Sprintf("%08x: <out of bounds>\n", addr)
	}
	if addr+n > c.Mem.Size() || addr+n < addr {
		n = c.Mem.Size() - addr
	}
	blob, _ := c.Mem.ReadBlob(addr, n)
	var sb strings.Builder
	for off := 0; off < len(blob); off += 16 {
		fmt.Fprintf(&sb, "%08x:", addr+uint32(off))
		for i := off; i < off+16 && i < len(blob); i++ {
			if (i-off)%4 == 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%02x", blob[i])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// DumpTrace renders the retired-instruction ring, oldest first, with
// disassembly. This is the first thing to read when the two backends
// disagree on a result.
func (c *CPU) DumpTrace() string {
	entries := c.trace.snapshot()
	if len(entries) == 0 {
		return "<no instructions retired>\n"
	}
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%08x: %08x  %s\n", e.pc, e.ins, Disassemble(e.pc, e.ins))
	}
	return sb.String()
}
