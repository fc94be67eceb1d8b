// Package state holds the guest CPU state (spec §3, C1): the 16
// general registers, the x86-EFLAGS-shaped flag shadow, and the
// block-boundary handoff fields nextBB/takenSrc/untakenSrc.
//
// GuestState must never move once created: emitted x86 code embeds
// the absolute host addresses of its fields as displacement operands
// (spec §9 — "the Translator must be heap-pinned"). Callers obtain a
// *GuestState once at startup and keep it alive for the run; nothing
// here copies the struct by value.
package state

import "unsafe"

// Register name aliases, matching the ARM calling/usage convention.
const (
	SP = 13
	LR = 14
	PC = 15
)

// GuestState is the process-wide singleton guest register file.
type GuestState struct {
	reg [16]uint32

	// FlagsShadow mirrors the x86 EFLAGS layout and holds the
	// guest-observable ARM condition flags between S=1 instructions.
	FlagsShadow uint32

	// NextBB is the guest address of the next block to run, written
	// by an exit stub and consumed by the dispatcher callouts.
	NextBB uint32

	// TakenSrc / UntakenSrc are host addresses of the CALL opcode byte
	// of the last-built block's exit stub(s), recorded at translation
	// time (by the block builder, not by emitted code — both the
	// write and the later patch happen host-side, single-threaded) so
	// the dispatcher can patch them for chaining. Zero means "do not
	// chain this call site".
	TakenSrc, UntakenSrc uintptr

	// ResumeAddr is the host address the exit stub's trailing
	// "JMP [ResumeAddr]" reads after a callout returns: the callout
	// (a plain Go function invoked via a raw x86 CALL from generated
	// code) writes the resolved block's host address here instead of
	// trying to jump there itself, since Go has no "return into an
	// arbitrary address" primitive — see internal/dispatch.
	ResumeAddr uintptr
}

// New returns a zeroed GuestState. Callers must place it somewhere
// stable (e.g. inside the equally-pinned Translator) before taking any
// address from it.
func New() *GuestState {
	return &GuestState{}
}

// Reg returns register i (0..15).
func (g *GuestState) Reg(i int) uint32 { return g.reg[i] }

// SetReg sets register i (0..15).
func (g *GuestState) SetReg(i int, v uint32) { g.reg[i] = v }

// Regs returns a snapshot copy of all 16 registers, for diagnostics
// and tests only — never for address-taking.
func (g *GuestState) Regs() [16]uint32 { return g.reg }

// RegAddr returns the absolute host address of register i, to be
// embedded as an x86 absolute-displacement operand.
func (g *GuestState) RegAddr(i int) uintptr {
	return uintptr(unsafe.Pointer(&g.reg[i]))
}

// FlagsShadowAddr returns the absolute host address of FlagsShadow.
func (g *GuestState) FlagsShadowAddr() uintptr {
	return uintptr(unsafe.Pointer(&g.FlagsShadow))
}

// NextBBAddr returns the absolute host address of NextBB.
func (g *GuestState) NextBBAddr() uintptr {
	return uintptr(unsafe.Pointer(&g.NextBB))
}

// ResumeAddrAddr returns the absolute host address of ResumeAddr.
func (g *GuestState) ResumeAddrAddr() uintptr {
	return uintptr(unsafe.Pointer(&g.ResumeAddr))
}

// InitEntry sets PC to the guest entry point and SP/R0 to the top of
// the guest stack, matching the loader's contract (spec §6, §4.8): LR
// starts at zero.
func (g *GuestState) InitEntry(entry, stackTop uint32) {
	g.reg[PC] = entry
	g.reg[SP] = stackTop
	g.reg[0] = stackTop
	g.reg[LR] = 0
}
