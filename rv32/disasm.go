package rv32

import "fmt"

var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2",
	"s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5",
	"a6", "a7", "s2", "s3", "s4", "s5", "s6", "s7",
	"s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// RegName returns the ABI name of a register index.
func RegName(i uint32) string {
	if i < 32 {
		return regNames[i]
	}
	return fmt.Sprintf("x%d", i)
}

var mulDivNames = [8]string{"mul", "mulh", "mulhsu", "mulhu", "div", "divu", "rem", "remu"}
var branchNames = map[uint32]string{0: "beq", 1: "bne", 4: "blt", 5: "bge", 6: "bltu", 7: "bgeu"}
var loadNames = map[uint32]string{0: "lb", 1: "lh", 2: "lw", 4: "lbu", 5: "lhu"}
var storeNames = map[uint32]string{0: "sb", 1: "sh", 2: "sw"}

// Disassemble renders one instruction word at the given pc.
func Disassemble(pc, ins uint32) string {
	rd := (ins >> 7) & 31
	funct3 := (ins >> 12) & 7
	rs1 := (ins >> 15) & 31
	rs2 := (ins >> 20) & 31

	r := func(i uint32) string { return RegName(i) }

	switch ins & 0x7f {
	case 0x37:
		return fmt.Sprintf("lui %s, %#x", r(rd), ins>>12)
	case 0x17:
		return fmt.Sprintf("auipc %s, %#x", r(rd), ins>>12)
	case 0x6f:
		return fmt.Sprintf("jal %s, %#x", r(rd), pc+immJ(ins))
	case 0x67:
		return fmt.Sprintf("jalr %s, %d(%s)", r(rd), immI(ins), r(rs1))
	case 0x63:
		name, ok := branchNames[funct3]
		if !ok {
			break
		}
		return fmt.Sprintf("%s %s, %s, %#x", name, r(rs1), r(rs2), pc+immB(ins))
	case 0x03:
		name, ok := loadNames[funct3]
		if !ok {
			break
		}
		return fmt.Sprintf("%s %s, %d(%s)", name, r(rd), immI(ins), r(rs1))
	case 0x23:
		name, ok := storeNames[funct3]
		if !ok {
			break
		}
		return fmt.Sprintf("%s %s, %d(%s)", name, r(rs2), immS(ins), r(rs1))
	case 0x13:
		imm := immI(ins)
		switch funct3 {
		case 0:
			return fmt.Sprintf("addi %s, %s, %d", r(rd), r(rs1), imm)
		case 1:
			return fmt.Sprintf("slli %s, %s, %d", r(rd), r(rs1), imm&31)
		case 2:
			return fmt.Sprintf("slti %s, %s, %d", r(rd), r(rs1), imm)
		case 3:
			return fmt.Sprintf("sltiu %s, %s, %d", r(rd), r(rs1), imm)
		case 4:
			return fmt.Sprintf("xori %s, %s, %d", r(rd), r(rs1), imm)
		case 5:
			if ins>>25 == 0x20 {
				return fmt.Sprintf("srai %s, %s, %d", r(rd), r(rs1), imm&31)
			}
			return fmt.Sprintf("srli %s, %s, %d", r(rd), r(rs1), imm&31)
		case 6:
			return fmt.Sprintf("ori %s, %s, %d", r(rd), r(rs1), imm)
		case 7:
			return fmt.Sprintf("andi %s, %s, %d", r(rd), r(rs1), imm)
		}
	case 0x33:
		if ins>>25 == 1 {
			return fmt.Sprintf("%s %s, %s, %s", mulDivNames[funct3], r(rd), r(rs1), r(rs2))
		}
		var name string
		switch funct3 {
		case 0:
			name = "add"
			if ins>>25 == 0x20 {
				name = "sub"
			}
		case 1:
			name = "sll"
		case 2:
			name = "slt"
		case 3:
			name = "sltu"
		case 4:
			name = "xor"
		case 5:
			name = "srl"
			if ins>>25 == 0x20 {
				name = "sra"
			}
		case 6:
			name = "or"
		case 7:
			name = "and"
		}
		return fmt.Sprintf("%s %s, %s, %s", name, r(rd), r(rs1), r(rs2))
	case 0x73:
		switch ins {
		case 0x00000073:
			return "ecall"
		case 0x00100073:
			return "ebreak"
		}
	case 0x0f:
		return "fence"
	}
	return fmt.Sprintf(".word %#08x", ins)
}
