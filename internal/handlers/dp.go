package handlers

import (
	"armx86jit/internal/codebuf"
	"armx86jit/internal/dbterr"
	"armx86jit/internal/decode"
	"armx86jit/internal/emit"
	"armx86jit/internal/state"
)

// ExecDP emits one of the 16 data-processing opcodes (spec §4.3).
// ADC/SBC/RSC need the guest's real carry flag live in EFLAGS at the
// moment their ALU op executes; execBinary/execReverse load it
// themselves, immediately before that op, since loadOperand2ToEAX's
// shift/rotate emission (a C1 shift-group instruction) clobbers CF/OF/
// ZF/SF/PF and would otherwise corrupt whatever carry-in a prelude
// loaded earlier.
func ExecDP(cb *codebuf.CodeBuffer, gs *state.GuestState, d *decode.DecodedInstruction) error {
	opcode, s := dpOpcode(d), sBit(d)

	switch opcode {
	case decode.OpMOV:
		return execMovMvn(cb, gs, d, false, s)
	case decode.OpMVN:
		return execMovMvn(cb, gs, d, true, s)
	case decode.OpRSB:
		return execReverse(cb, gs, d, emit.ALUSub, false)
	case decode.OpRSC:
		return execReverse(cb, gs, d, emit.ALUSbb, true)
	case decode.OpCMN:
		return execBinary(cb, gs, d, emit.ALUAdd, false, true, false)
	case decode.OpTST:
		return execBinary(cb, gs, d, emit.ALUAnd, false, true, false)
	case decode.OpTEQ:
		return execBinary(cb, gs, d, emit.ALUXor, false, true, false)
	case decode.OpCMP:
		return execBinary(cb, gs, d, emit.ALUSub, false, true, false)
	case decode.OpSUB:
		return execBinary(cb, gs, d, emit.ALUSub, false, false, false)
	case decode.OpBIC:
		return execBinary(cb, gs, d, emit.ALUAnd, true, false, false)
	case decode.OpAND:
		return execBinary(cb, gs, d, emit.ALUAnd, false, false, false)
	case decode.OpEOR:
		return execBinary(cb, gs, d, emit.ALUXor, false, false, false)
	case decode.OpADD:
		return execBinary(cb, gs, d, emit.ALUAdd, false, false, false)
	case decode.OpADC:
		return execBinary(cb, gs, d, emit.ALUAdc, false, false, true)
	case decode.OpSBC:
		return execBinary(cb, gs, d, emit.ALUSbb, false, false, true)
	case decode.OpORR:
		return execBinary(cb, gs, d, emit.ALUOr, false, false, false)
	default:
		return &dbterr.UnsupportedInstructionError{Addr: d.PArm, Word: d.Word}
	}
}

func dpOpcode(d *decode.DecodedInstruction) decode.DPOpcode {
	if d.Family == decode.FamilyDPImm {
		return d.DPImm.Opcode
	}
	return d.DPReg.Opcode
}

// execBinary implements AND/EOR/ADD/ADC/SBC/ORR/TST/TEQ/CMP/CMN/SUB/BIC:
// EAX := Rn, EDX := operand2 (NOTed first for BIC), EAX := EAX <op> EDX,
// store to Rd unless flagsOnly (spec §4.3 step 3/4). needsCarryIn
// (ADC/SBC) reloads the guest's carry flag right before the ALU op,
// after operand2 has already been shifted/rotated into EAX — loading
// it any earlier would be clobbered by that shift's own flag writes.
func execBinary(cb *codebuf.CodeBuffer, gs *state.GuestState, d *decode.DecodedInstruction, op emit.ALUOp, notOperand2, flagsOnly, needsCarryIn bool) error {
	if err := loadOperand2ToEAX(cb, gs, d); err != nil {
		return err
	}
	if notOperand2 {
		if err := emit.NotEAX(cb); err != nil {
			return err
		}
	}
	if err := emit.MovRegReg(cb, emit.EDX, emit.EAX); err != nil {
		return err
	}
	rnReg := rn(d)
	if err := materializePC(cb, gs, d.PArm, rnReg); err != nil {
		return err
	}
	if err := emit.MovRegFromMem(cb, emit.EAX, gs.RegAddr(int(rnReg))); err != nil {
		return err
	}
	if needsCarryIn {
		if err := emit.FlagLoadPrelude(cb, gs.FlagsShadowAddr()); err != nil {
			return err
		}
	}
	if err := emit.ALUEAXFromReg(cb, op, emit.EDX); err != nil {
		return err
	}
	if !flagsOnly {
		if err := writeRd(cb, gs, d); err != nil {
			return err
		}
	}
	return maybeFlagSave(cb, gs, d)
}

// execReverse implements RSB/RSC: EDX := Rn, EAX := operand2,
// EAX := EAX <op> EDX (spec §4.3: "implement with an EDX-scratch swap").
// needsCarryIn (RSC) reloads the guest's carry flag right before the
// ALU op, for the same reason execBinary does.
func execReverse(cb *codebuf.CodeBuffer, gs *state.GuestState, d *decode.DecodedInstruction, op emit.ALUOp, needsCarryIn bool) error {
	if err := loadOperand2ToEAX(cb, gs, d); err != nil {
		return err
	}
	if err := emit.MovRegReg(cb, emit.EDX, emit.EAX); err != nil {
		return err
	}
	// Load Rn into EAX while EDX holds operand2, then swap the two
	// (below) so the ALU op can keep EAX as its destination.
	rnReg := rn(d)
	if err := materializePC(cb, gs, d.PArm, rnReg); err != nil {
		return err
	}
	if err := emit.MovRegFromMem(cb, emit.EAX, gs.RegAddr(int(rnReg))); err != nil {
		return err
	}
	// Now EAX=Rn, EDX=operand2. Swap so EAX holds operand2 (the
	// minuend) and EDX holds Rn (the subtrahend), using ECX as the
	// spare register for three MOVs.
	if err := emit.MovRegReg(cb, emit.ECX, emit.EAX); err != nil { // ECX := Rn
		return err
	}
	if err := emit.MovRegReg(cb, emit.EAX, emit.EDX); err != nil { // EAX := operand2
		return err
	}
	if err := emit.MovRegReg(cb, emit.EDX, emit.ECX); err != nil { // EDX := Rn
		return err
	}
	if needsCarryIn {
		if err := emit.FlagLoadPrelude(cb, gs.FlagsShadowAddr()); err != nil {
			return err
		}
	}
	if err := emit.ALUEAXFromReg(cb, op, emit.EDX); err != nil {
		return err
	}
	if err := writeRd(cb, gs, d); err != nil {
		return err
	}
	return maybeFlagSave(cb, gs, d)
}

// execMovMvn implements MOV/MVN: Rd := operand2 (negated for MVN),
// Rn is unused.
func execMovMvn(cb *codebuf.CodeBuffer, gs *state.GuestState, d *decode.DecodedInstruction, not bool, s bool) error {
	if err := loadOperand2ToEAX(cb, gs, d); err != nil {
		return err
	}
	if not {
		if err := emit.NotEAX(cb); err != nil {
			return err
		}
	}
	if err := writeRd(cb, gs, d); err != nil {
		return err
	}
	if s {
		return emit.FlagSavePostlude(cb, gs.FlagsShadowAddr())
	}
	return nil
}

func writeRd(cb *codebuf.CodeBuffer, gs *state.GuestState, d *decode.DecodedInstruction) error {
	rdReg := rd(d)
	if err := emit.MovMemFromReg(cb, gs.RegAddr(int(rdReg)), emit.EAX); err != nil {
		return err
	}
	if rdReg == state.PC {
		d.EndBlock = true
	}
	return nil
}

func maybeFlagSave(cb *codebuf.CodeBuffer, gs *state.GuestState, d *decode.DecodedInstruction) error {
	if sBit(d) {
		return emit.FlagSavePostlude(cb, gs.FlagsShadowAddr())
	}
	return nil
}
