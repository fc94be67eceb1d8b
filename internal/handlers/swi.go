package handlers

import (
	"armx86jit/internal/dbterr"
	"armx86jit/internal/decode"
)

// SWIStub is a registered handler for one SWI immediate value (spec
// §4.9, C15). The registry is empty by default: an unrecognized
// immediate is UnsupportedInstruction, matching the source's stubbed
// SWI handling (spec §4.3 "SWI, coprocessor") without carrying forward
// its half-emitted zero-immediate EAX load (SPEC_FULL.md §9).
type SWIStub func(d *decode.DecodedInstruction) error

// SWIRegistry maps a SWI immediate to its emulation stub.
type SWIRegistry map[uint32]SWIStub

// ExecSWI looks up d's immediate in reg and reports Unsupported if absent.
func ExecSWI(reg SWIRegistry, d *decode.DecodedInstruction) error {
	stub, ok := reg[d.Word&0x00FFFFFF]
	if !ok {
		return &dbterr.UnsupportedInstructionError{Addr: d.PArm, Word: d.Word}
	}
	return stub(d)
}
