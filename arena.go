package crepl

import (
	"errors"
	"fmt"
)

// Arena is the scoped call context for one input line. Every temporary a
// call needs (argument storage, string copies, return storage) is allocated
// here and released together by Reset. The session resets it exactly once per
// accepted line, before tokenizing, so nothing leaks from one line into the
// next and no pointer handed to native code survives past its line.
type Arena struct {
	mem    Memory
	blocks []Block
	bytes  int

	resets int
	peak   int
}

func NewArena(mem Memory) *Arena {
	return &Arena{mem: mem}
}

// Alloc returns a zeroed block of size bytes. Zero-byte requests are an error.
func (a *Arena) Alloc(size int) (Block, error) {
	if size <= 0 {
		return Block{}, fmt.Errorf("arena: attempted to allocate %d bytes", size)
	}
	b, err := a.mem.Alloc(size)
	if err != nil {
		return Block{}, fmt.Errorf("arena: out of memory (requested %d bytes): %w", size, err)
	}
	a.blocks = append(a.blocks, b)
	a.bytes += size
	if a.bytes > a.peak {
		a.peak = a.bytes
	}
	return b, nil
}

// CString copies s into the arena followed by a NUL terminator. Strings with
// an embedded NUL are rejected, since native code would see a shorter value.
func (a *Arena) CString(s string) (Block, error) {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return Block{}, errors.New("arena: string contains NUL byte")
		}
	}
	b, err := a.Alloc(len(s) + 1)
	if err != nil {
		return Block{}, err
	}
	copy(b.Bytes, s)
	b.Bytes[len(s)] = 0
	return b, nil
}

// Reset releases every block. Resetting an empty arena does nothing.
func (a *Arena) Reset() {
	a.resets++
	if len(a.blocks) == 0 {
		return
	}
	for i := len(a.blocks) - 1; i >= 0; i-- {
		a.mem.Free(a.blocks[i])
		a.blocks[i] = Block{}
	}
	a.blocks = a.blocks[:0]
	a.bytes = 0
}

// Memory exposes the backing allocator (the renderer peeks through it).
func (a *Arena) Memory() Memory { return a.mem }

// ArenaStats is the snapshot printed by :info.
type ArenaStats struct {
	Blocks    int
	Bytes     int
	PeakBytes int
	Capacity  int
	Resets    int
}

func (a *Arena) Stats() ArenaStats {
	return ArenaStats{
		Blocks:    len(a.blocks),
		Bytes:     a.bytes,
		PeakBytes: a.peak,
		Capacity:  cap(a.blocks),
		Resets:    a.resets,
	}
}
