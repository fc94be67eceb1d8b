// Package handlers implements the per-opcode x86 code generators
// (spec §4.3, C6): the 16 data-processing opcodes, load/store
// immediate/register/multiple, branch, and SWI. Each handler receives
// a decoded instruction plus the live guest state and code buffer,
// appends x86 bytes, and reports EndBlock on the DecodedInstruction
// when it writes PC.
//
// Register convention: handlers shuttle guest values through EAX
// (primary) and EDX (second operand / base register), exactly as
// spec §4.3 specifies, grounded directly in
// original_source/src/alu.c's handler bodies.
package handlers

import (
	"armx86jit/internal/codebuf"
	"armx86jit/internal/decode"
	"armx86jit/internal/emit"
	"armx86jit/internal/state"
)

// materializePC writes addr+8 into reg[15] if Rn or Rm is register 15,
// per spec §3's on-demand PC materialization convention. armAddr is
// the address of the instruction currently being translated.
func materializePC(cb *codebuf.CodeBuffer, gs *state.GuestState, armAddr uint32, regs ...uint8) error {
	for _, r := range regs {
		if r == state.PC {
			return emit.MovMemImm32(cb, gs.RegAddr(state.PC), armAddr+8)
		}
	}
	return nil
}

// loadOperand2ToEAX computes the shifted/rotated operand-2 value for a
// DPReg or DPImm instruction into EAX (spec §4.3's "data-processing
// register/immediate form" steps 2 and "the rest is identical").
func loadOperand2ToEAX(cb *codebuf.CodeBuffer, gs *state.GuestState, d *decode.DecodedInstruction) error {
	switch d.Family {
	case decode.FamilyDPImm:
		if err := emit.MovEAXImm32(cb, uint32(d.DPImm.Imm8)); err != nil {
			return err
		}
		if d.DPImm.Rotate != 0 {
			return emit.ShiftEAXImm8(cb, emit.ShiftROR, d.DPImm.Rotate)
		}
		return nil
	case decode.FamilyDPReg:
		b := d.DPReg
		if err := materializePC(cb, gs, d.PArm, b.Rm); err != nil {
			return err
		}
		if err := emit.MovRegFromMem(cb, emit.EAX, gs.RegAddr(int(b.Rm))); err != nil {
			return err
		}
		if b.ShiftByReg {
			if err := emit.MovRegFromMem(cb, emit.ECX, gs.RegAddr(int(b.Rs))); err != nil {
				return err
			}
			return emit.ShiftEAXByCL(cb, emit.FromDecodeShift(b.ShiftType))
		}
		if b.ShiftType == decode.ShiftROR && b.ShiftAmt == 0 {
			return emit.RcrEAXBy1(cb) // RRX
		}
		amt := b.ShiftAmt
		if amt == 0 {
			if b.ShiftType == decode.ShiftLSR || b.ShiftType == decode.ShiftASR {
				amt = 32
			} else {
				return nil // LSL #0: no-op
			}
		}
		return emit.ShiftEAXImm8(cb, emit.FromDecodeShift(b.ShiftType), amt)
	}
	return nil
}

// rn returns the Rn field for whichever DP variant is active.
func rn(d *decode.DecodedInstruction) uint8 {
	if d.Family == decode.FamilyDPImm {
		return d.DPImm.Rn
	}
	return d.DPReg.Rn
}

// rd returns the Rd field for whichever DP variant is active.
func rd(d *decode.DecodedInstruction) uint8 {
	if d.Family == decode.FamilyDPImm {
		return d.DPImm.Rd
	}
	return d.DPReg.Rd
}

// sBit returns the S field for whichever DP variant is active.
func sBit(d *decode.DecodedInstruction) bool {
	if d.Family == decode.FamilyDPImm {
		return d.DPImm.S
	}
	return d.DPReg.S
}
