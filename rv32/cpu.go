package rv32

// Config bounds one emulator instance. Zero fields take defaults.
type Config struct {
	// MemSize is the guest address space in bytes.
	MemSize uint32

	// StackSize is reserved at the top of memory for the stack.
	StackSize uint32

	// MaxInstructions is the per-call instruction budget.
	MaxInstructions uint64

	// TraceDepth is how many retired instructions the trace ring keeps.
	TraceDepth int
}

// Defaults for zero Config fields.
const (
	DefaultMemSize         = 1 << 20
	DefaultStackSize       = 64 << 10
	DefaultMaxInstructions = 1 << 24
	DefaultTraceDepth      = 32
)

func (c Config) withDefaults() Config {
	if c.MemSize == 0 {
		c.MemSize = DefaultMemSize
	}
	if c.StackSize == 0 {
		c.StackSize = DefaultStackSize
	}
	if c.MaxInstructions == 0 {
		c.MaxInstructions = DefaultMaxInstructions
	}
	if c.TraceDepth == 0 {
		c.TraceDepth = DefaultTraceDepth
	}
	return c
}

// ECALL service numbers, passed in a7.
const (
	// EcallExit halts the machine; a0 is the return value.
	EcallExit = 93

	// EcallPanic is the guest panic handler: a0/a1 message ptr+len,
	// a2/a3 file ptr+len, a4 line.
	EcallPanic = 1001
)

// ABI register indexes used by the call harness.
const (
	RegZero = 0
	RegRA   = 1
	RegSP   = 2
	RegA0   = 10
	RegA7   = 17
)

// CPU is one RV32IM hart plus its private memory. A CPU is not safe for
// concurrent use; the exec pool gives each worker its own.
type CPU struct {
	Mem  *Memory
	Regs [32]uint32
	PC   uint32

	cfg     Config
	retired uint64
	trace   traceRing
}

// New builds a CPU with the given config.
func New(cfg Config) *CPU {
	cfg = cfg.withDefaults()
	return &CPU{
		Mem:   NewMemory(cfg.MemSize),
		cfg:   cfg,
		trace: newTraceRing(cfg.TraceDepth),
	}
}

// Config returns the effective configuration.
func (c *CPU) Config() Config { return c.cfg }

// Retired returns how many instructions the current call has executed.
func (c *CPU) Retired() uint64 { return c.retired }

// Reset clears registers and the retired counter (memory is preserved,
// the loaded program stays in place) and points the stack at the top of
// memory.
func (c *CPU) Reset(pc uint32) {
	c.Regs = [32]uint32{}
	c.Regs[RegSP] = c.cfg.MemSize
	c.PC = pc
	c.retired = 0
	c.trace.reset()
}

func (c *CPU) trap(code TrapCode, addr uint32) error {
	return &TrapError{Code: code, PC: c.PC, Addr: addr, Regs: c.Regs}
}

// Run executes until a terminal state and returns the guest's exit value
// on Halted. Every other terminal state is a typed error: *TrapError,
// *PanicError or *LimitError. The call is fully synchronous; there is no
// cancellation mid-call.
func (c *CPU) Run() (uint32, error) {
	for {
		done, exit, err := c.Step()
		if err != nil {
			return 0, err
		}
		if done {
			return exit, nil
		}
	}
}

// Step retires one instruction. done is true on EcallExit.
func (c *CPU) Step() (done bool, exit uint32, err error) {
	if c.retired >= c.cfg.MaxInstructions {
		return false, 0, &LimitError{Limit: c.cfg.MaxInstructions, PC: c.PC}
	}
	ins, ok := c.Mem.LoadWord(c.PC)
	if !ok {
		return false, 0, c.trap(TrapOutOfBounds, c.PC)
	}
	c.retired++
	c.trace.push(c.PC, ins)

	next := c.PC + 4
	rd := (ins >> 7) & 31
	funct3 := (ins >> 12) & 7
	rs1 := c.Regs[(ins>>15)&31]
	rs2 := c.Regs[(ins>>20)&31]

	var wr uint32
	writeRd := false

	switch ins & 0x7f {
	case 0x37: // LUI
		wr, writeRd = ins&0xfffff000, true

	case 0x17: // AUIPC
		wr, writeRd = c.PC+(ins&0xfffff000), true

	case 0x6f: // JAL
		wr, writeRd = next, true
		next = c.PC + immJ(ins)

	case 0x67: // JALR
		if funct3 != 0 {
			return false, 0, c.trap(TrapUnknownOpcode, c.PC)
		}
		wr, writeRd = next, true
		next = (rs1 + uint32(immI(ins))) &^ 1

	case 0x63: // branches
		taken := false
		switch funct3 {
		case 0:
			taken = rs1 == rs2
		case 1:
			taken = rs1 != rs2
		case 4:
			taken = int32(rs1) < int32(rs2)
		case 5:
			taken = int32(rs1) >= int32(rs2)
		case 6:
			taken = rs1 < rs2
		case 7:
			taken = rs1 >= rs2
		default:
			return false, 0, c.trap(TrapUnknownOpcode, c.PC)
		}
		if taken {
			next = c.PC + immB(ins)
		}

	case 0x03: // loads
		addr := rs1 + uint32(immI(ins))
		switch funct3 {
		case 0: // LB
			b, ok := c.Mem.LoadByte(addr)
			if !ok {
				return false, 0, c.trap(TrapOutOfBounds, addr)
			}
			wr = uint32(int32(int8(b)))
		case 1: // LH
			h, ok := c.Mem.LoadHalf(addr)
			if !ok {
				return false, 0, c.loadTrap(addr, 2)
			}
			wr = uint32(int32(int16(h)))
		case 2: // LW
			w, ok := c.Mem.LoadWord(addr)
			if !ok {
				return false, 0, c.loadTrap(addr, 4)
			}
			wr = w
		case 4: // LBU
			b, ok := c.Mem.LoadByte(addr)
			if !ok {
				return false, 0, c.trap(TrapOutOfBounds, addr)
			}
			wr = uint32(b)
		case 5: // LHU
			h, ok := c.Mem.LoadHalf(addr)
			if !ok {
				return false, 0, c.loadTrap(addr, 2)
			}
			wr = uint32(h)
		default:
			return false, 0, c.trap(TrapUnknownOpcode, c.PC)
		}
		writeRd = true

	case 0x23: // stores
		addr := rs1 + uint32(immS(ins))
		var ok bool
		switch funct3 {
		case 0:
			ok = c.Mem.StoreByte(addr, byte(rs2))
		case 1:
			ok = c.Mem.StoreHalf(addr, uint16(rs2))
		case 2:
			ok = c.Mem.StoreWord(addr, rs2)
		default:
			return false, 0, c.trap(TrapUnknownOpcode, c.PC)
		}
		if !ok {
			if addr%4 != 0 && funct3 == 2 || addr%2 != 0 && funct3 == 1 {
				return false, 0, c.trap(TrapMisalignedStore, addr)
			}
			return false, 0, c.trap(TrapOutOfBounds, addr)
		}

	case 0x13: // OP-IMM
		imm := uint32(immI(ins))
		switch funct3 {
		case 0:
			wr = rs1 + imm
		case 1:
			if ins>>25 != 0 {
				return false, 0, c.trap(TrapUnknownOpcode, c.PC)
			}
			wr = rs1 << (imm & 31)
		case 2:
			wr = boolWord(int32(rs1) < int32(imm))
		case 3:
			wr = boolWord(rs1 < imm)
		case 4:
			wr = rs1 ^ imm
		case 5:
			switch ins >> 25 {
			case 0:
				wr = rs1 >> (imm & 31)
			case 0x20:
				wr = uint32(int32(rs1) >> (imm & 31))
			default:
				return false, 0, c.trap(TrapUnknownOpcode, c.PC)
			}
		case 6:
			wr = rs1 | imm
		case 7:
			wr = rs1 & imm
		}
		writeRd = true

	case 0x33: // OP
		funct7 := ins >> 25
		switch {
		case funct7 == 1: // RV32M
			wr = mulDiv(funct3, rs1, rs2)
		case funct7 == 0 || funct7 == 0x20:
			sub := funct7 == 0x20
			switch funct3 {
			case 0:
				if sub {
					wr = rs1 - rs2
				} else {
					wr = rs1 + rs2
				}
			case 1:
				wr = rs1 << (rs2 & 31)
			case 2:
				wr = boolWord(int32(rs1) < int32(rs2))
			case 3:
				wr = boolWord(rs1 < rs2)
			case 4:
				wr = rs1 ^ rs2
			case 5:
				if sub {
					wr = uint32(int32(rs1) >> (rs2 & 31))
				} else {
					wr = rs1 >> (rs2 & 31)
				}
			case 6:
				wr = rs1 | rs2
			case 7:
				wr = rs1 & rs2
			}
		default:
			return false, 0, c.trap(TrapUnknownOpcode, c.PC)
		}
		writeRd = true

	case 0x73: // SYSTEM
		switch ins {
		case 0x00000073: // ECALL
			return c.ecall()
		case 0x00100073: // EBREAK
			return false, 0, c.trap(TrapBreakpoint, c.PC)
		default:
			return false, 0, c.trap(TrapUnknownOpcode, c.PC)
		}

	case 0x0f: // FENCE, a no-op on this single-hart model
	default:
		return false, 0, c.trap(TrapUnknownOpcode, c.PC)
	}

	if writeRd && rd != RegZero {
		c.Regs[rd] = wr
	}
	c.PC = next
	return false, 0, nil
}

func (c *CPU) loadTrap(addr, width uint32) error {
	if addr%width != 0 {
		return c.trap(TrapMisalignedLoad, addr)
	}
	return c.trap(TrapOutOfBounds, addr)
}

func (c *CPU) ecall() (bool, uint32, error) {
	switch c.Regs[RegA7] {
	case EcallExit:
		return true, c.Regs[RegA0], nil
	case EcallPanic:
		msg := c.readString(c.Regs[RegA0], c.Regs[RegA0+1])
		file := c.readString(c.Regs[RegA0+2], c.Regs[RegA0+3])
		return false, 0, &PanicError{
			Message: msg,
			File:    file,
			Line:    int(c.Regs[RegA0+4]),
		}
	default:
		return false, 0, c.trap(TrapBadEcall, c.Regs[RegA7])
	}
}

func (c *CPU) readString(addr, n uint32) string {
	if n > 4096 {
		n = 4096
	}
	blob, ok := c.Mem.ReadBlob(addr, n)
	if !ok {
		return ""
	}
	return string(blob)
}

func mulDiv(funct3, a, b uint32) uint32 {
	sa, sb := int32(a), int32(b)
	switch funct3 {
	case 0: // MUL
		return uint32(sa * sb)
	case 1: // MULH
		return uint32(uint64(int64(sa)*int64(sb)) >> 32)
	case 2: // MULHSU
		return uint32(uint64(int64(sa)*int64(uint64(b))) >> 32)
	case 3: // MULHU
		return uint32((uint64(a) * uint64(b)) >> 32)
	case 4: // DIV
		if sb == 0 {
			return ^uint32(0)
		}
		if sa == -1<<31 && sb == -1 {
			return a
		}
		return uint32(sa / sb)
	case 5: // DIVU
		if b == 0 {
			return ^uint32(0)
		}
		return a / b
	case 6: // REM
		if sb == 0 {
			return a
		}
		if sa == -1<<31 && sb == -1 {
			return 0
		}
		return uint32(sa % sb)
	default: // REMU
		if b == 0 {
			return a
		}
		return a % b
	}
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// Immediate decoders for the RV32 instruction formats.

func immI(ins uint32) int32 {
	return int32(ins) >> 20
}

func immS(ins uint32) int32 {
	return int32(ins&0xfe000000)>>20 | int32((ins>>7)&0x1f)
}

func immB(ins uint32) uint32 {
	imm := ((ins >> 31) & 1 << 12) |
		((ins >> 7) & 1 << 11) |
		((ins >> 25) & 0x3f << 5) |
		((ins >> 8) & 0xf << 1)
	return uint32(int32(imm<<19) >> 19)
}

func immJ(ins uint32) uint32 {
	imm := ((ins >> 31) & 1 << 20) |
		((ins >> 12) & 0xff << 12) |
		((ins >> 20) & 1 << 11) |
		((ins >> 21) & 0x3ff << 1)
	return uint32(int32(imm<<11) >> 11)
}
