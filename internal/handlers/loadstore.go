package handlers

import (
	"armx86jit/internal/codebuf"
	"armx86jit/internal/decode"
	"armx86jit/internal/emit"
	"armx86jit/internal/state"
)

// ExecLSImm implements the immediate-offset single-data-transfer
// variant (spec §4.3 "Load/store immediate").
func ExecLSImm(cb *codebuf.CodeBuffer, gs *state.GuestState, d *decode.DecodedInstruction) error {
	b := d.LSImm
	if err := materializePC(cb, gs, d.PArm, b.Rn); err != nil {
		return err
	}
	if err := emit.MovRegFromMem(cb, emit.EDX, gs.RegAddr(int(b.Rn))); err != nil {
		return err
	}

	signed := int32(b.Imm12)
	if !b.U {
		signed = -signed
	}
	accessDisp := int32(0)
	if b.P {
		accessDisp = signed
	}

	if b.L {
		if b.B {
			if err := emit.MovZXByteFromBase(cb, emit.EAX, emit.EDX, accessDisp); err != nil {
				return err
			}
		} else if err := emit.MovRegFromBase(cb, emit.EAX, emit.EDX, accessDisp); err != nil {
			return err
		}
		if err := emit.MovMemFromReg(cb, gs.RegAddr(int(b.Rd)), emit.EAX); err != nil {
			return err
		}
		if b.Rd == state.PC {
			d.EndBlock = true
		}
	} else {
		if err := materializePC(cb, gs, d.PArm, b.Rd); err != nil {
			return err
		}
		if err := emit.MovRegFromMem(cb, emit.EAX, gs.RegAddr(int(b.Rd))); err != nil {
			return err
		}
		if b.B {
			if err := emit.MovByteToBase(cb, emit.EDX, accessDisp, emit.EAX); err != nil {
				return err
			}
		} else if err := emit.MovBaseFromReg(cb, emit.EDX, accessDisp, emit.EAX); err != nil {
			return err
		}
	}

	if !b.P || b.W {
		if err := emit.AddRegImm32(cb, emit.EDX, signed); err != nil {
			return err
		}
		if err := emit.MovMemFromReg(cb, gs.RegAddr(int(b.Rn)), emit.EDX); err != nil {
			return err
		}
	}
	return nil
}

// ExecLSReg implements the register-offset single-data-transfer
// variant: as LSImm but the offset comes from a shifted register
// (spec §4.3 "Load/store register").
func ExecLSReg(cb *codebuf.CodeBuffer, gs *state.GuestState, d *decode.DecodedInstruction) error {
	b := d.LSReg
	if err := materializePC(cb, gs, d.PArm, b.Rn); err != nil {
		return err
	}
	if err := emit.MovRegFromMem(cb, emit.EAX, gs.RegAddr(int(b.Rm))); err != nil {
		return err
	}
	if b.ShiftAmt != 0 {
		if err := emit.ShiftEAXImm8(cb, emit.FromDecodeShift(b.ShiftType), b.ShiftAmt); err != nil {
			return err
		}
	}
	if err := emit.MovRegReg(cb, emit.ECX, emit.EAX); err != nil { // ECX := offset
		return err
	}
	if err := emit.MovRegFromMem(cb, emit.EDX, gs.RegAddr(int(b.Rn))); err != nil {
		return err
	}
	if b.P {
		if b.U {
			if err := emit.ALURegFromReg(cb, emit.ALUAdd, emit.EDX, emit.ECX); err != nil {
				return err
			}
		} else if err := emit.ALURegFromReg(cb, emit.ALUSub, emit.EDX, emit.ECX); err != nil {
			return err
		}
	}

	if b.L {
		if b.B {
			if err := emit.MovZXByteFromBase(cb, emit.EAX, emit.EDX, 0); err != nil {
				return err
			}
		} else if err := emit.MovRegFromBase(cb, emit.EAX, emit.EDX, 0); err != nil {
			return err
		}
		if err := emit.MovMemFromReg(cb, gs.RegAddr(int(b.Rd)), emit.EAX); err != nil {
			return err
		}
		if b.Rd == state.PC {
			d.EndBlock = true
		}
	} else {
		if err := materializePC(cb, gs, d.PArm, b.Rd); err != nil {
			return err
		}
		if err := emit.MovRegFromMem(cb, emit.EAX, gs.RegAddr(int(b.Rd))); err != nil {
			return err
		}
		if b.B {
			if err := emit.MovByteToBase(cb, emit.EDX, 0, emit.EAX); err != nil {
				return err
			}
		} else if err := emit.MovBaseFromReg(cb, emit.EDX, 0, emit.EAX); err != nil {
			return err
		}
	}

	if !b.P {
		if b.U {
			if err := emit.ALURegFromReg(cb, emit.ALUAdd, emit.EDX, emit.ECX); err != nil {
				return err
			}
		} else if err := emit.ALURegFromReg(cb, emit.ALUSub, emit.EDX, emit.ECX); err != nil {
			return err
		}
	}
	if !b.P || b.W {
		return emit.MovMemFromReg(cb, gs.RegAddr(int(b.Rn)), emit.EDX)
	}
	return nil
}

// ExecLSMult implements LDM/STM (spec §4.3 "Load/store multiple").
// Registers transfer in ascending order for U=1, descending for U=0;
// disp pre-increments by 4 when P=1 and post-increments when P=0, sign
// flipped when U=0 — resolved per ARM ARM semantics (SPEC_FULL.md §9),
// not the source's use-then-increment ordering bug.
func ExecLSMult(cb *codebuf.CodeBuffer, gs *state.GuestState, d *decode.DecodedInstruction) error {
	b := d.LSMult
	if err := emit.MovRegFromMem(cb, emit.EDX, gs.RegAddr(int(b.Rn))); err != nil {
		return err
	}

	order := make([]int, 0, 16)
	for i := 0; i < 16; i++ {
		bitIdx := i
		if !b.U {
			bitIdx = 15 - i
		}
		if b.RegList&(1<<uint(bitIdx)) != 0 {
			order = append(order, bitIdx)
		}
	}

	step := int32(4)
	if !b.U {
		step = -4
	}
	disp := int32(0)
	for _, reg := range order {
		if b.P {
			disp += step
		}
		if b.L {
			if err := emit.MovRegFromBase(cb, emit.EAX, emit.EDX, disp); err != nil {
				return err
			}
			if err := emit.MovMemFromReg(cb, gs.RegAddr(reg), emit.EAX); err != nil {
				return err
			}
			if reg == state.PC {
				d.EndBlock = true
			}
		} else {
			if err := materializePC(cb, gs, d.PArm, uint8(reg)); err != nil {
				return err
			}
			if err := emit.MovRegFromMem(cb, emit.EAX, gs.RegAddr(reg)); err != nil {
				return err
			}
			if err := emit.MovBaseFromReg(cb, emit.EDX, disp, emit.EAX); err != nil {
				return err
			}
		}
		if !b.P {
			disp += step
		}
	}

	if b.W {
		if err := emit.AddRegImm32(cb, emit.EDX, disp); err != nil {
			return err
		}
		return emit.MovMemFromReg(cb, gs.RegAddr(int(b.Rn)), emit.EDX)
	}
	return nil
}
