package crepl

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"
)

// Block is one zeroed allocation handed out by a Memory. Bytes aliases the
// storage at Addr; it is only valid until the block is freed.
type Block struct {
	Addr  uintptr
	Bytes []byte
}

// Memory is the allocator behind an Arena. The native runtime backs it with
// the C heap so argument storage can be handed to foreign code; HeapMemory is
// the pure Go version used where no native calls happen.
type Memory interface {
	Alloc(size int) (Block, error)
	Free(b Block)
	// PeekCString reads bytes starting at addr up to (not including) the first
	// NUL, stopping after max bytes. It never reads past what it can prove is
	// readable for memory it manages.
	PeekCString(addr uintptr, max int) []byte
}

// HeapMemory allocates from the Go heap and keeps every live block reachable
// so addresses stay valid until Free.
type HeapMemory struct {
	mu     sync.Mutex
	blocks map[uintptr][]byte
}

func NewHeapMemory() *HeapMemory {
	return &HeapMemory{blocks: make(map[uintptr][]byte)}
}

func (m *HeapMemory) Alloc(size int) (Block, error) {
	if size <= 0 {
		return Block{}, fmt.Errorf("attempted to allocate %d bytes", size)
	}
	buf := make([]byte, size)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	m.mu.Lock()
	m.blocks[addr] = buf
	m.mu.Unlock()
	return Block{Addr: addr, Bytes: buf}, nil
}

func (m *HeapMemory) Free(b Block) {
	m.mu.Lock()
	delete(m.blocks, b.Addr)
	m.mu.Unlock()
}

// Live returns the number of blocks not yet freed.
func (m *HeapMemory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blocks)
}

func (m *HeapMemory) PeekCString(addr uintptr, max int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	for base, buf := range m.blocks {
		if addr < base || addr >= base+uintptr(len(buf)) {
			continue
		}
		rest := buf[addr-base:]
		out := make([]byte, 0, 16)
		for i := 0; i < len(rest) && i < max; i++ {
			if rest[i] == 0 {
				break
			}
			out = append(out, rest[i])
		}
		return out
	}
	return nil
}

// putAddr stores a native pointer value into dst using host byte order.
func putAddr(dst []byte, addr uintptr) {
	if PointerSize == 8 {
		binary.NativeEndian.PutUint64(dst, uint64(addr))
		return
	}
	binary.NativeEndian.PutUint32(dst, uint32(addr))
}

// getAddr reads a native pointer value written in host byte order.
func getAddr(src []byte) uintptr {
	if PointerSize == 8 {
		return uintptr(binary.NativeEndian.Uint64(src))
	}
	return uintptr(binary.NativeEndian.Uint32(src))
}
