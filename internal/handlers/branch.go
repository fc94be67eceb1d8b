package handlers

import (
	"armx86jit/internal/codebuf"
	"armx86jit/internal/decode"
	"armx86jit/internal/emit"
	"armx86jit/internal/state"
)

// ExecBranch implements B/BL (spec §4.3 "Branch"). The target is a
// compile-time constant (offset and current address are both known at
// translation time), so it is written straight into reg[PC] as an
// immediate store rather than computed at run time — exactly like
// every other EndBlock handler (MOV/LDR/LDM to PC), so the block
// builder's exit stub can uniformly copy reg[PC] into nextBB without
// needing to know which handler produced it.
func ExecBranch(cb *codebuf.CodeBuffer, gs *state.GuestState, d *decode.DecodedInstruction) error {
	target := uint32(int32(d.PArm) + 8 + d.Branch.Offset)
	if d.Branch.Link {
		if err := emit.MovMemImm32(cb, gs.RegAddr(state.LR), d.PArm+4); err != nil {
			return err
		}
	}
	if err := emit.MovMemImm32(cb, gs.RegAddr(state.PC), target); err != nil {
		return err
	}
	d.EndBlock = true
	return nil
}
