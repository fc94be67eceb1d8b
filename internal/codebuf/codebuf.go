// Package codebuf implements the code buffer (spec §3, C3): a
// contiguous writable+executable region that x86 bytes are appended
// into, plus the in-place patch primitive chaining needs (spec §4.5,
// §9 — "confine it to a single patchCallToJmp primitive").
//
// The original source simply malloc'd the buffer (src/codeenv.c,
// initX86Code) and relied on the host not enforcing W^X. A faithful
// Go reimplementation instead maps real RWX pages so the buffer is
// genuinely executable, using golang.org/x/sys/unix for the mmap call
// mmap(2) needs (MAP_ANON|MAP_PRIVATE with PROT_EXEC — the standard
// library's syscall.Mmap does not let the caller request PROT_EXEC).
package codebuf

import (
	"armx86jit/internal/dbterr"

	"golang.org/x/sys/unix"
)

// CodeBuffer is the append-only RWX region emitted x86 bytes land in.
// Must not be reallocated or moved for the life of the run: generated
// code's own relative displacements, and every absolute address
// embedded by emitters, are only valid for as long as this backing
// memory stays put (spec §5, §9).
type CodeBuffer struct {
	mem    []byte
	cursor int
}

// New mmaps size bytes as anonymous, private, read+write+exec memory.
func New(size int) (*CodeBuffer, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, err
	}
	return &CodeBuffer{mem: mem}, nil
}

// Close releases the mapping.
func (c *CodeBuffer) Close() error {
	return unix.Munmap(c.mem)
}

// Cursor returns the current append offset.
func (c *CodeBuffer) Cursor() int { return c.cursor }

// BaseAddr returns the absolute host address of byte 0.
func (c *CodeBuffer) BaseAddr() uintptr { return addrOf(c.mem) }

// AddrAt returns the absolute host address of the byte at offset.
func (c *CodeBuffer) AddrAt(offset int) uintptr { return addrOf(c.mem[offset:]) }

// AppendByte writes one byte at the cursor and advances it.
func (c *CodeBuffer) AppendByte(b byte) error {
	if err := c.ensure(1); err != nil {
		return err
	}
	c.mem[c.cursor] = b
	c.cursor++
	return nil
}

// AppendDword writes v little-endian at the cursor and advances it by 4.
func (c *CodeBuffer) AppendDword(v uint32) error {
	if err := c.ensure(4); err != nil {
		return err
	}
	c.mem[c.cursor+0] = byte(v)
	c.mem[c.cursor+1] = byte(v >> 8)
	c.mem[c.cursor+2] = byte(v >> 16)
	c.mem[c.cursor+3] = byte(v >> 24)
	c.cursor += 4
	return nil
}

// AppendBytes writes b at the cursor and advances it by len(b).
func (c *CodeBuffer) AppendBytes(b []byte) error {
	if err := c.ensure(len(b)); err != nil {
		return err
	}
	copy(c.mem[c.cursor:], b)
	c.cursor += len(b)
	return nil
}

// PatchDword overwrites 4 bytes at offset with v little-endian,
// without touching the cursor. Used both for the conditional-prelude
// placeholder back-patch (spec §4.4) and, via PatchCallToJmp, for
// chaining (spec §4.5).
func (c *CodeBuffer) PatchDword(offset int, v uint32) {
	c.mem[offset+0] = byte(v)
	c.mem[offset+1] = byte(v >> 8)
	c.mem[offset+2] = byte(v >> 16)
	c.mem[offset+3] = byte(v >> 24)
}

// ByteAt returns the byte at offset, for precondition checks.
func (c *CodeBuffer) ByteAt(offset int) byte { return c.mem[offset] }

// PatchCallToJmp rewrites the 5-byte CALL rel32 at callSiteAddr (the
// address of the CALL opcode byte, not its operand) into a JMP rel32
// targeting hostTarget. Asserts the expected CALL opcode is present,
// per spec §9's "precondition assert that the five bytes match the
// expected CALL rel32 pattern".
func (c *CodeBuffer) PatchCallToJmp(callSiteAddr uintptr, hostTarget uintptr) {
	off := int(callSiteAddr - c.BaseAddr())
	if c.mem[off] != 0xE8 {
		panic("PatchCallToJmp: call site does not begin with CALL rel32 (0xE8)")
	}
	c.mem[off] = 0xE9 // JMP rel32
	rel := uint32(int32(hostTarget) - int32(callSiteAddr+5))
	c.PatchDword(off+1, rel)
}

func (c *CodeBuffer) ensure(n int) error {
	if c.cursor+n > len(c.mem) {
		return &dbterr.ExhaustedCodeBufferError{Requested: n, Available: len(c.mem) - c.cursor}
	}
	return nil
}
