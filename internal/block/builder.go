// Package block implements the block builder state machine (spec
// §4.4, C7): Start -> EmittingInstr -> EndDetected -> ExitStubEmitted
// -> Sealed. It loops the decoder until a handler marks EndBlock,
// emits the exit stub, and records the translation in the cache.
package block

import (
	"armx86jit/internal/cache"
	"armx86jit/internal/codebuf"
	"armx86jit/internal/decode"
	"armx86jit/internal/emit"
	"armx86jit/internal/handlers"
	"armx86jit/internal/state"
	"armx86jit/util/dbg"
)

// Fetcher reads the 32-bit little-endian guest word at addr.
type Fetcher func(addr uint32) uint32

// Builder owns the per-run singletons a translation needs. Callouts
// are injected as host addresses (obtained via the dispatch package's
// funcPC trick) so this package has no dependency on dispatch, which
// in turn depends on Builder to resolve cache misses — avoiding an
// import cycle.
type Builder struct {
	CB       *codebuf.CodeBuffer
	GS       *state.GuestState
	Cache    *cache.Cache
	Fetch    Fetcher
	SWI      handlers.SWIRegistry
	Chaining bool

	BBTaken, BBNotTaken uintptr // host addresses of the dispatcher callouts
}

// Translate returns the host address of guestPC's translation,
// building it if the cache misses (spec §4.4 "Start").
func (b *Builder) Translate(guestPC uint32) (uintptr, error) {
	if host, ok := b.Cache.Lookup(guestPC); ok {
		return host, nil
	}
	blockStart := b.CB.AddrAt(b.CB.Cursor())
	b.Cache.Insert(guestPC, blockStart)
	dbg.Tracef("translating block at %08x -> host %#x", guestPC, blockStart)

	pc := guestPC
	for {
		word := b.Fetch(pc)
		d, err := decode.Decode(word, pc)
		if err != nil {
			return 0, err
		}

		var placeholderOffset int
		condGuarded := d.Cond != decode.CondAL
		if condGuarded {
			off, err := emit.EmitCondPrelude(b.CB, d.Cond, b.GS.FlagsShadowAddr())
			if err != nil {
				return 0, err
			}
			placeholderOffset = off
		}
		bodyStart := b.CB.Cursor()
		d.PX86 = bodyStart

		if err := b.dispatch(&d); err != nil {
			return 0, err
		}

		if !d.EndBlock {
			if condGuarded {
				emit.PatchCondPlaceholder(b.CB, placeholderOffset, b.CB.Cursor()-bodyStart)
			}
			pc += 4
			continue
		}

		takenSrc, err := b.emitTakenStub(&d)
		if err != nil {
			return 0, err
		}
		b.GS.TakenSrc = takenSrc

		if condGuarded {
			// The inverse jump must skip the handler body AND the
			// whole Taken stub, landing exactly on the NotTaken
			// stub's first byte.
			preNotTaken := b.CB.Cursor()
			untakenSrc, err := b.emitNotTakenStub(pc + 4)
			if err != nil {
				return 0, err
			}
			b.GS.UntakenSrc = untakenSrc
			emit.PatchCondPlaceholder(b.CB, placeholderOffset, preNotTaken-bodyStart)
		} else {
			b.GS.UntakenSrc = 0
		}
		break
	}

	return blockStart, nil
}

// dispatch routes a decoded instruction to its opcode handler.
func (b *Builder) dispatch(d *decode.DecodedInstruction) error {
	switch d.Family {
	case decode.FamilyDPReg, decode.FamilyDPImm:
		return handlers.ExecDP(b.CB, b.GS, d)
	case decode.FamilyLSImm:
		return handlers.ExecLSImm(b.CB, b.GS, d)
	case decode.FamilyLSReg:
		return handlers.ExecLSReg(b.CB, b.GS, d)
	case decode.FamilyLSMult:
		return handlers.ExecLSMult(b.CB, b.GS, d)
	case decode.FamilyBranch:
		return handlers.ExecBranch(b.CB, b.GS, d)
	case decode.FamilySWI:
		return handlers.ExecSWI(b.SWI, d)
	default:
		// FamilyUnsupported: decode.Decode already returned an error
		// for this word before dispatch was ever reached.
		return nil
	}
}

// emitTakenStub emits: copy reg[15] -> nextBB, CALL bbTaken,
// JMP [ResumeAddr] (spec §4.4 "Taken stub", §4.5). Chaining is only
// safe when the target is a compile-time constant, i.e. a direct
// branch — register/memory-computed PC writes (MOV/LDR/LDM to PC) can
// target a different address on each execution, so for any family
// other than Branch this returns zero, which leaves GS.TakenSrc
// unpatchable (spec §4.5 "Calls that must remain unchaininable").
func (b *Builder) emitTakenStub(d *decode.DecodedInstruction) (uintptr, error) {
	if err := emit.MovRegFromMem(b.CB, emit.EAX, b.GS.RegAddr(state.PC)); err != nil {
		return 0, err
	}
	if err := emit.MovMemFromReg(b.CB, b.GS.NextBBAddr(), emit.EAX); err != nil {
		return 0, err
	}
	siteAddr, err := emit.CallRel32(b.CB, b.BBTaken)
	if err != nil {
		return 0, err
	}
	if err := emit.JmpIndirectMem(b.CB, b.GS.ResumeAddrAddr()); err != nil {
		return 0, err
	}
	if !b.Chaining || d.Family != decode.FamilyBranch {
		return 0, nil
	}
	return siteAddr, nil
}

// emitNotTakenStub emits: write fallthroughAddr -> nextBB, CALL
// bbNotTaken, JMP [ResumeAddr] (spec §4.4 "NotTaken fall-through").
// The fall-through address is always a compile-time constant, so this
// call site is always chainable when chaining is enabled.
func (b *Builder) emitNotTakenStub(fallthroughAddr uint32) (uintptr, error) {
	if err := emit.MovMemImm32(b.CB, b.GS.NextBBAddr(), fallthroughAddr); err != nil {
		return 0, err
	}
	siteAddr, err := emit.CallRel32(b.CB, b.BBNotTaken)
	if err != nil {
		return 0, err
	}
	if err := emit.JmpIndirectMem(b.CB, b.GS.ResumeAddrAddr()); err != nil {
		return 0, err
	}
	if !b.Chaining {
		return 0, nil
	}
	return siteAddr, nil
}
