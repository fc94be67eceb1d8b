// Package loader implements the ELF-loading and guest-stack-mapping
// collaborators spec.md calls out as external interfaces (spec §1,
// §6) and SPEC_FULL.md concretizes as C10/C11. It parses an
// ELFCLASS32/EM_ARM/ELFDATA2LSB image with the standard library's
// debug/elf (no third-party ELF parser appears anywhere in the
// example pack, and debug/elf's header-parsing is exactly what every
// Go ELF consumer reaches for), then maps each PT_LOAD segment at its
// literal p_vaddr via a fixed-address mmap — required because emitted
// x86 code bakes in absolute displacements into guest memory, so a
// guest virtual address must literally be the process's real address
// (grounded in original_source/src/ArmX86ElfLoad.c's mapSegments()).
package loader

import (
	"debug/elf"
	"fmt"
	"io"

	"armx86jit/internal/dbterr"

	"golang.org/x/sys/unix"
)

const pageSize = 4096

// Image describes the guest process image after mapping.
type Image struct {
	EntryAddr                 uint32
	LowestVaddr, HighestVaddr uint32
}

// Load parses the ELF at path and maps its PT_LOAD segments.
func Load(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, &dbterr.LoaderError{Path: path, Err: err}
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 || f.Machine != elf.EM_ARM || f.Data != elf.ELFDATA2LSB {
		return nil, &dbterr.LoaderError{Path: path, Err: fmt.Errorf("not a 32-bit little-endian ARM ELF")}
	}

	img := &Image{EntryAddr: uint32(f.Entry), LowestVaddr: ^uint32(0)}

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if err := img.mapSegment(prog); err != nil {
			return nil, &dbterr.LoaderError{Path: path, Err: err}
		}
	}
	return img, nil
}

// mapSegment mmaps one PT_LOAD program header at its literal p_vaddr,
// copies file contents, zeroes the BSS tail, and sets final permissions.
func (img *Image) mapSegment(prog *elf.Prog) error {
	alignedBase := uint32(prog.Vaddr) &^ (pageSize - 1)
	pageOff := uint32(prog.Vaddr) - alignedBase
	size := int((pageOff + uint32(prog.Memsz) + pageSize - 1) &^ (pageSize - 1))

	dst, err := mmapFixed(uintptr(alignedBase), size, unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return fmt.Errorf("mapping segment at %#x: %w", prog.Vaddr, err)
	}

	if prog.Filesz > 0 {
		if _, err := io.ReadFull(prog.Open(), dst[pageOff:pageOff+uint32(prog.Filesz)]); err != nil {
			return fmt.Errorf("reading segment contents: %w", err)
		}
	}

	prot := 0
	if prog.Flags&elf.PF_R != 0 {
		prot |= unix.PROT_READ
	}
	if prog.Flags&elf.PF_W != 0 {
		prot |= unix.PROT_WRITE
	}
	if prog.Flags&elf.PF_X != 0 {
		prot |= unix.PROT_EXEC
	}
	if err := unix.Mprotect(dst, prot); err != nil {
		return fmt.Errorf("protecting segment at %#x: %w", prog.Vaddr, err)
	}

	lo := uint32(prog.Vaddr)
	hi := uint32(prog.Vaddr) + uint32(prog.Memsz)
	if lo < img.LowestVaddr {
		img.LowestVaddr = lo
	}
	if hi > img.HighestVaddr {
		img.HighestVaddr = hi
	}
	return nil
}
