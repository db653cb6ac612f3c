package rv32

import "encoding/binary"

// Memory is the guest's flat little-endian address space, sized by the
// emulator config. Accesses outside it or misaligned for their width are
// reported to the CPU as traps, not panics.
type Memory struct {
	bytes []byte
}

// NewMemory allocates a zeroed address space of the given size.
func NewMemory(size uint32) *Memory {
	return &Memory{bytes: make([]byte, size)}
}

// Size returns the address space size in bytes.
func (m *Memory) Size() uint32 { return uint32(len(m.bytes)) }

func (m *Memory) inBounds(addr, width uint32) bool {
	return addr <= m.Size()-width && m.Size() >= width
}

// LoadWord reads a 32-bit little-endian word.
func (m *Memory) LoadWord(addr uint32) (uint32, bool) {
	if addr%4 != 0 || !m.inBounds(addr, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.bytes[addr:]), true
}

// StoreWord writes a 32-bit little-endian word.
func (m *Memory) StoreWord(addr, w uint32) bool {
	if addr%4 != 0 || !m.inBounds(addr, 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.bytes[addr:], w)
	return true
}

// LoadHalf reads a 16-bit little-endian halfword.
func (m *Memory) LoadHalf(addr uint32) (uint16, bool) {
	if addr%2 != 0 || !m.inBounds(addr, 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.bytes[addr:]), true
}

// StoreHalf writes a 16-bit little-endian halfword.
func (m *Memory) StoreHalf(addr uint32, h uint16) bool {
	if addr%2 != 0 || !m.inBounds(addr, 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.bytes[addr:], h)
	return true
}

// LoadByte reads one byte.
func (m *Memory) LoadByte(addr uint32) (byte, bool) {
	if !m.inBounds(addr, 1) {
		return 0, false
	}
	return m.bytes[addr], true
}

// StoreByte writes one byte.
func (m *Memory) StoreByte(addr uint32, b byte) bool {
	if !m.inBounds(addr, 1) {
		return false
	}
	m.bytes[addr] = b
	return true
}

// WriteBlob copies a byte slice into memory, for program loading.
func (m *Memory) WriteBlob(addr uint32, blob []byte) bool {
	if uint64(addr)+uint64(len(blob)) > uint64(m.Size()) {
		return false
	}
	copy(m.bytes[addr:], blob)
	return true
}

// ReadBlob copies a range out of memory.
func (m *Memory) ReadBlob(addr, n uint32) ([]byte, bool) {
	if uint64(addr)+uint64(n) > uint64(m.Size()) {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, m.bytes[addr:])
	return out, true
}
