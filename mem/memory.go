// Package mem models sparse physical memory for the timing front-end.
// Pages are allocated on first touch so large, mostly-empty address spaces
// stay cheap.
package mem

const pageSize = 4096

// Memory is a sparse byte-addressable physical memory. Reads of untouched
// pages return zeroes.
type Memory struct {
	size  uint64
	pages map[uint64][]byte
}

// NewMemory creates a memory covering physical addresses [0, size).
func NewMemory(size uint64) *Memory {
	return &Memory{
		size:  size,
		pages: make(map[uint64][]byte),
	}
}

// Size returns the extent of the physical address space in bytes.
func (m *Memory) Size() uint64 {
	return m.size
}

// IsMemAddr reports whether paddr falls inside the physical address space.
func (m *Memory) IsMemAddr(paddr uint64) bool {
	return paddr < m.size
}

// Read copies len(buf) bytes starting at paddr into buf. Reads beyond the
// memory extent are truncated to zeroes.
func (m *Memory) Read(paddr uint64, buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	for n := 0; n < len(buf); {
		addr := paddr + uint64(n)
		if addr >= m.size {
			return
		}
		page, ok := m.pages[addr/pageSize]
		off := addr % pageSize
		chunk := min(uint64(len(buf)-n), pageSize-off, m.size-addr)
		if ok {
			copy(buf[n:n+int(chunk)], page[off:])
		}
		n += int(chunk)
	}
}

// Write copies data into memory starting at paddr. Writes beyond the memory
// extent are dropped.
func (m *Memory) Write(paddr uint64, data []byte) {
	for n := 0; n < len(data); {
		addr := paddr + uint64(n)
		if addr >= m.size {
			return
		}
		pageNum := addr / pageSize
		page, ok := m.pages[pageNum]
		if !ok {
			page = make([]byte, pageSize)
			m.pages[pageNum] = page
		}
		off := addr % pageSize
		chunk := min(uint64(len(data)-n), pageSize-off, m.size-addr)
		copy(page[off:], data[n:n+int(chunk)])
		n += int(chunk)
	}
}

// Write32 stores a little-endian 32-bit word at paddr.
func (m *Memory) Write32(paddr uint64, word uint32) {
	var buf [4]byte
	buf[0] = byte(word)
	buf[1] = byte(word >> 8)
	buf[2] = byte(word >> 16)
	buf[3] = byte(word >> 24)
	m.Write(paddr, buf[:])
}

// LoadImage writes a program image at base.
func (m *Memory) LoadImage(base uint64, image []byte) {
	m.Write(base, image)
}
