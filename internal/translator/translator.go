// Package translator wires the collaborators — guest state, code
// buffer, translation cache, block builder and dispatcher — into the
// single end-to-end pipeline the CLI front-end drives (spec §1, §5,
// C9). It owns the one genuinely single-threaded run loop: load,
// translate the entry block, transfer control, and never return until
// the guest halts (spec §4.5's HaltSentinel) or a CORE error aborts.
package translator

import (
	"unsafe"

	"armx86jit/internal/block"
	"armx86jit/internal/cache"
	"armx86jit/internal/codebuf"
	"armx86jit/internal/config"
	"armx86jit/internal/dispatch"
	"armx86jit/internal/handlers"
	"armx86jit/internal/state"
	"armx86jit/util/dbg"
)

// Translator owns every long-lived singleton a run needs. It must be
// heap-allocated and never copied: GuestState and CodeBuffer addresses
// are baked into emitted code the moment a block is translated.
type Translator struct {
	GS    *state.GuestState
	CB    *codebuf.CodeBuffer
	Cache *cache.Cache

	builder *block.Builder
	cfg     config.Config
}

// New constructs a Translator with a fresh code buffer sized per cfg
// and an empty SWI registry (spec §4.9 — callers wanting syscall
// emulation register stubs into builder.SWI before the first Run).
func New(cfg config.Config) (*Translator, error) {
	cb, err := codebuf.New(int(cfg.CodeBufferSize))
	if err != nil {
		return nil, err
	}

	t := &Translator{
		GS:    state.New(),
		CB:    cb,
		Cache: cache.New(),
		cfg:   cfg,
	}
	t.builder = &block.Builder{
		CB:         t.CB,
		GS:         t.GS,
		Cache:      t.Cache,
		Fetch:      fetchGuestWord,
		SWI:        handlers.SWIRegistry{},
		Chaining:   cfg.Chaining,
		BBTaken:    dispatch.BBTakenAddr(),
		BBNotTaken: dispatch.BBNotTakenAddr(),
	}
	dispatch.Init(&dispatch.Dispatch{
		GS:       t.GS,
		CB:       t.CB,
		Builder:  t.builder,
		Chaining: cfg.Chaining,
		MaxSteps: cfg.MaxSteps,
	})
	return t, nil
}

// SWI exposes the builder's SWI registry so main can install stubs
// before Run.
func (t *Translator) SWI() handlers.SWIRegistry { return t.builder.SWI }

// Close releases the code buffer's RWX mapping.
func (t *Translator) Close() error { return t.CB.Close() }

// Run translates the block at entry and transfers control into it.
// It does not return until the guest halts (os.Exit is called from
// within generated-code callouts, spec §4.5) or translation fails.
func (t *Translator) Run(entry, stackTop uint32) error {
	t.GS.InitEntry(entry, stackTop)
	dbg.Infof("starting at entry %#08x, stack top %#08x", entry, stackTop)

	host, err := t.builder.Translate(entry)
	if err != nil {
		return err
	}
	callAt(host)
	return nil
}

// fetchGuestWord reads the little-endian 32-bit guest word at addr.
// The loader fixed-maps every PT_LOAD segment at its literal p_vaddr,
// so a guest address is always a valid, directly dereferenceable host
// address (spec §6's "the address space is the host process's own").
func fetchGuestWord(addr uint32) uint32 {
	return *(*uint32)(unsafe.Pointer(uintptr(addr)))
}
