// Package emit holds the x86 byte/dword appenders, MOD-R/M helpers,
// flag save/restore sequences and the conditional-jump skeleton (spec
// §4.2, §4.3, C5). Opcode bytes are grounded directly in
// original_source/src/ArmX86DecodePrivate.h's X86_OP_* constants and
// original_source/src/alu.c's handler bodies; this package is the one
// CORE component implemented without a third-party assembler (see
// DESIGN.md / SPEC_FULL.md "Considered and rejected: golang-asm").
package emit

import (
	"armx86jit/internal/codebuf"
	"armx86jit/internal/decode"
)

// Reg is an x86 GP register used only as a ModRM /reg field selector
// in the helpers below; the translator only ever materializes guest
// values through EAX, EDX and ECX (shift counts and scratch).
type Reg byte

const (
	EAX Reg = 0
	ECX Reg = 1
	EDX Reg = 2
)

// modrmAbs builds a ModRM byte for "reg, [disp32]" addressing with no
// base/index register (mod=00, rm=101), the only addressing mode this
// translator ever needs since every guest register and shadow word
// lives at a fixed absolute host address.
func modrmAbs(reg Reg) byte { return 0x05 | (byte(reg) << 3) }

// modrmRegDirect builds a ModRM byte for a register-direct operand
// (mod=11), used by shift/NOT instructions operating on EAX in place.
func modrmRegDirect(regField byte, rm Reg) byte {
	return 0xC0 | (regField << 3) | byte(rm)
}

// MovRegFromMem emits "MOV reg, [addr]".
func MovRegFromMem(cb *codebuf.CodeBuffer, reg Reg, addr uintptr) error {
	if reg == EAX {
		if err := cb.AppendByte(0xA1); err != nil {
			return err
		}
		return cb.AppendDword(uint32(addr))
	}
	if err := cb.AppendByte(0x8B); err != nil {
		return err
	}
	if err := cb.AppendByte(modrmAbs(reg)); err != nil {
		return err
	}
	return cb.AppendDword(uint32(addr))
}

// MovMemFromReg emits "MOV [addr], reg".
func MovMemFromReg(cb *codebuf.CodeBuffer, addr uintptr, reg Reg) error {
	if reg == EAX {
		if err := cb.AppendByte(0xA3); err != nil {
			return err
		}
		return cb.AppendDword(uint32(addr))
	}
	if err := cb.AppendByte(0x89); err != nil {
		return err
	}
	if err := cb.AppendByte(modrmAbs(reg)); err != nil {
		return err
	}
	return cb.AppendDword(uint32(addr))
}

// MovEAXImm32 emits "MOV EAX, imm32".
func MovEAXImm32(cb *codebuf.CodeBuffer, imm uint32) error {
	if err := cb.AppendByte(0xB8); err != nil {
		return err
	}
	return cb.AppendDword(imm)
}

// ALUOp selects the x86 ALU opcode group for the "op EAX, [mem]" and
// "op [mem], EAX" forms below.
type ALUOp byte

const (
	ALUAdd ALUOp = 0x00
	ALUOr  ALUOp = 0x08
	ALUAdc ALUOp = 0x10
	ALUSbb ALUOp = 0x18
	ALUAnd ALUOp = 0x20
	ALUSub ALUOp = 0x28
	ALUXor ALUOp = 0x30
	ALUCmp ALUOp = 0x38
)

// ALUEAXFromMem emits "op EAX, [addr]" (EAX := EAX <op> mem).
func ALUEAXFromMem(cb *codebuf.CodeBuffer, op ALUOp, addr uintptr) error {
	if err := cb.AppendByte(byte(op) + 0x03); err != nil {
		return err
	}
	if err := cb.AppendByte(modrmAbs(EAX)); err != nil {
		return err
	}
	return cb.AppendDword(uint32(addr))
}

// ALUMemFromEAX emits "op [addr], EAX" (mem := mem <op> EAX). Used
// only for CMP-style flag-only comparisons against a memory operand
// where the result is discarded; arithmetic handlers always route
// their writeback through EAX and MovMemFromReg instead.
func ALUMemFromEAX(cb *codebuf.CodeBuffer, op ALUOp, addr uintptr) error {
	if err := cb.AppendByte(byte(op) + 0x01); err != nil {
		return err
	}
	if err := cb.AppendByte(modrmAbs(EAX)); err != nil {
		return err
	}
	return cb.AppendDword(uint32(addr))
}

// ALUEAXImm32 emits "op EAX, imm32".
func ALUEAXImm32(cb *codebuf.CodeBuffer, op ALUOp, imm uint32) error {
	var opcode byte
	switch op {
	case ALUAdd:
		opcode = 0x05
	case ALUSub:
		opcode = 0x2D
	case ALUCmp:
		opcode = 0x3D
	case ALUAnd:
		opcode = 0x25
	case ALUOr:
		opcode = 0x0D
	case ALUXor:
		opcode = 0x35
	}
	if err := cb.AppendByte(opcode); err != nil {
		return err
	}
	return cb.AppendDword(imm)
}

// MovRegReg emits "MOV dst, src" (register-direct form).
func MovRegReg(cb *codebuf.CodeBuffer, dst, src Reg) error {
	if dst == src {
		return nil
	}
	if err := cb.AppendByte(0x89); err != nil {
		return err
	}
	return cb.AppendByte(modrmRegDirect(byte(src), dst))
}

// ALURegFromReg emits "op dst, src" (dst := dst <op> src), register-direct.
func ALURegFromReg(cb *codebuf.CodeBuffer, op ALUOp, dst, src Reg) error {
	if err := cb.AppendByte(byte(op) + 0x03); err != nil {
		return err
	}
	return cb.AppendByte(modrmRegDirect(byte(dst), src))
}

// ALUEAXFromReg emits "op EAX, src" (EAX := EAX <op> src).
func ALUEAXFromReg(cb *codebuf.CodeBuffer, op ALUOp, src Reg) error {
	return ALURegFromReg(cb, op, EAX, src)
}

// MovMemImm32 emits "MOV dword [addr], imm32", used to materialize PC
// (spec §3: "reg[15] is not updated incrementally... materialized on
// demand using the convention PC = addr(currentInst) + 8").
func MovMemImm32(cb *codebuf.CodeBuffer, addr uintptr, imm uint32) error {
	if err := cb.AppendByte(0xC7); err != nil {
		return err
	}
	if err := cb.AppendByte(0x05); err != nil { // /0, mod=00 rm=101
		return err
	}
	if err := cb.AppendDword(uint32(addr)); err != nil {
		return err
	}
	return cb.AppendDword(imm)
}

// RcrEAXBy1 emits "RCR EAX, 1" (rotate-right-through-carry by one),
// the x86 primitive behind ARM's RRX operand-2 shift (shiftAmt==0,
// type==ROR).
func RcrEAXBy1(cb *codebuf.CodeBuffer) error {
	if err := cb.AppendByte(0xD1); err != nil {
		return err
	}
	return cb.AppendByte(modrmRegDirect(3, EAX))
}

// NotEAX emits "NOT EAX".
func NotEAX(cb *codebuf.CodeBuffer) error {
	if err := cb.AppendByte(0xF7); err != nil {
		return err
	}
	return cb.AppendByte(modrmRegDirect(2, EAX))
}

// NegEAX emits "NEG EAX" (two's-complement negate), used by RSB/CMN's
// subtract-from-immediate-side sequences (spec §4.3).
func NegEAX(cb *codebuf.CodeBuffer) error {
	if err := cb.AppendByte(0xF7); err != nil {
		return err
	}
	return cb.AppendByte(modrmRegDirect(3, EAX))
}

// ShiftKind selects a C1/D3 shift-group instruction.
type ShiftKind byte

const (
	ShiftSHL ShiftKind = 4
	ShiftSHR ShiftKind = 5
	ShiftSAR ShiftKind = 7
	ShiftROR ShiftKind = 1
)

// FromDecodeShift maps a decoded ShiftType to its x86 ShiftKind. RRX
// (shiftAmt==0 && type==ROR) must be special-cased by the caller.
func FromDecodeShift(t decode.ShiftType) ShiftKind {
	switch t {
	case decode.ShiftLSL:
		return ShiftSHL
	case decode.ShiftLSR:
		return ShiftSHR
	case decode.ShiftASR:
		return ShiftSAR
	default:
		return ShiftROR
	}
}

// ShiftEAXImm8 emits "<kind> EAX, imm8".
func ShiftEAXImm8(cb *codebuf.CodeBuffer, kind ShiftKind, amt uint8) error {
	if err := cb.AppendByte(0xC1); err != nil {
		return err
	}
	if err := cb.AppendByte(modrmRegDirect(byte(kind), EAX)); err != nil {
		return err
	}
	return cb.AppendByte(amt)
}

// ShiftEAXByCL emits "<kind> EAX, CL", for register-specified shift
// amounts (loaded into CL beforehand via MovRegFromMem(cb, ECX, ...)
// then an 8-bit truncation isn't needed: x86 masks the count itself).
func ShiftEAXByCL(cb *codebuf.CodeBuffer, kind ShiftKind) error {
	if err := cb.AppendByte(0xD3); err != nil {
		return err
	}
	return cb.AppendByte(modrmRegDirect(byte(kind), EAX))
}

// modrmBaseDisp32 builds a ModRM byte for "[base + disp32]" addressing
// (mod=10), used by the load/store handlers to index off EDX (the
// base register materialized from reg[Rn]).
func modrmBaseDisp32(regField byte, base Reg) byte {
	return 0x80 | (regField << 3) | byte(base)
}

// MovRegFromBase emits "MOV dst, [base+disp32]".
func MovRegFromBase(cb *codebuf.CodeBuffer, dst, base Reg, disp int32) error {
	if err := cb.AppendByte(0x8B); err != nil {
		return err
	}
	if err := cb.AppendByte(modrmBaseDisp32(byte(dst), base)); err != nil {
		return err
	}
	return cb.AppendDword(uint32(disp))
}

// MovBaseFromReg emits "MOV [base+disp32], src".
func MovBaseFromReg(cb *codebuf.CodeBuffer, base Reg, disp int32, src Reg) error {
	if err := cb.AppendByte(0x89); err != nil {
		return err
	}
	if err := cb.AppendByte(modrmBaseDisp32(byte(src), base)); err != nil {
		return err
	}
	return cb.AppendDword(uint32(disp))
}

// MovZXByteFromBase emits "MOVZX dst, byte [base+disp32]".
func MovZXByteFromBase(cb *codebuf.CodeBuffer, dst, base Reg, disp int32) error {
	if err := cb.AppendByte(0x0F); err != nil {
		return err
	}
	if err := cb.AppendByte(0xB6); err != nil {
		return err
	}
	if err := cb.AppendByte(modrmBaseDisp32(byte(dst), base)); err != nil {
		return err
	}
	return cb.AppendDword(uint32(disp))
}

// MovByteToBase emits "MOV byte [base+disp32], src" (src's low byte;
// only ever called with src==EAX, i.e. AL).
func MovByteToBase(cb *codebuf.CodeBuffer, base Reg, disp int32, src Reg) error {
	if err := cb.AppendByte(0x88); err != nil {
		return err
	}
	if err := cb.AppendByte(modrmBaseDisp32(byte(src), base)); err != nil {
		return err
	}
	return cb.AppendDword(uint32(disp))
}

// AddRegImm32 emits "ADD dst, imm32" (register-direct, used for base
// writeback in load/store handlers).
func AddRegImm32(cb *codebuf.CodeBuffer, dst Reg, imm int32) error {
	if imm >= 0 {
		if err := cb.AppendByte(0x81); err != nil {
			return err
		}
		if err := cb.AppendByte(modrmRegDirect(0, dst)); err != nil {
			return err
		}
		return cb.AppendDword(uint32(imm))
	}
	if err := cb.AppendByte(0x81); err != nil {
		return err
	}
	if err := cb.AppendByte(modrmRegDirect(5, dst)); err != nil { // /5 = SUB
		return err
	}
	return cb.AppendDword(uint32(-imm))
}

// PushMem emits "PUSH [addr]".
func PushMem(cb *codebuf.CodeBuffer, addr uintptr) error {
	if err := cb.AppendByte(0xFF); err != nil {
		return err
	}
	if err := cb.AppendByte(0x35); err != nil { // /6, mod=00 rm=101
		return err
	}
	return cb.AppendDword(uint32(addr))
}

// PopMem emits "POP [addr]".
func PopMem(cb *codebuf.CodeBuffer, addr uintptr) error {
	if err := cb.AppendByte(0x8F); err != nil {
		return err
	}
	if err := cb.AppendByte(0x05); err != nil { // /0, mod=00 rm=101
		return err
	}
	return cb.AppendDword(uint32(addr))
}

// PushF emits "PUSHF".
func PushF(cb *codebuf.CodeBuffer) error { return cb.AppendByte(0x9C) }

// PopF emits "POPF".
func PopF(cb *codebuf.CodeBuffer) error { return cb.AppendByte(0x9D) }

// PushImm32 emits "PUSH imm32".
func PushImm32(cb *codebuf.CodeBuffer, imm uint32) error {
	if err := cb.AppendByte(0x68); err != nil {
		return err
	}
	return cb.AppendDword(imm)
}

// Cmc emits "CMC" (complement carry flag), used by the HI/LS inverse
// jump sequences (spec §4.2 table).
func Cmc(cb *codebuf.CodeBuffer) error { return cb.AppendByte(0xF5) }

// FlagLoadPrelude emits the "read flags" sequence: PUSH[flagsAddr]; POPF.
func FlagLoadPrelude(cb *codebuf.CodeBuffer, flagsShadowAddr uintptr) error {
	if err := PushMem(cb, flagsShadowAddr); err != nil {
		return err
	}
	return PopF(cb)
}

// FlagSavePostlude emits the "set flags" sequence: PUSHF; POP[flagsAddr].
func FlagSavePostlude(cb *codebuf.CodeBuffer, flagsShadowAddr uintptr) error {
	if err := PushF(cb); err != nil {
		return err
	}
	return PopMem(cb, flagsShadowAddr)
}

// CallRel32 emits a CALL rel32 to target and returns the host address
// of the CALL opcode byte (needed by the block builder to record
// takenSrc/untakenSrc for chaining, spec §4.4).
func CallRel32(cb *codebuf.CodeBuffer, target uintptr) (uintptr, error) {
	siteAddr := cb.AddrAt(cb.Cursor())
	if err := cb.AppendByte(0xE8); err != nil {
		return 0, err
	}
	rel := uint32(int32(target) - int32(siteAddr+5))
	if err := cb.AppendDword(rel); err != nil {
		return 0, err
	}
	return siteAddr, nil
}

// JmpIndirectMem emits "JMP [addr]" — an absolute indirect jump
// through a memory operand holding the target address. Used by the
// exit stub to resume into whatever block a callout resolved, since
// the callout (a plain Go function) can only write that address to
// memory and return, not jump there itself (spec §4.5 "Transfer to
// generated code").
func JmpIndirectMem(cb *codebuf.CodeBuffer, addr uintptr) error {
	if err := cb.AppendByte(0xFF); err != nil {
		return err
	}
	if err := cb.AppendByte(0x25); err != nil { // /4, mod=00 rm=101
		return err
	}
	return cb.AppendDword(uint32(addr))
}

// JccInverse maps an ARM condition to its inverse x86 Jcc condition
// nibble (spec §4.2 table), plus whether a CMC must precede it (true
// only for HI/LS, whose inverses need the carry flag complemented
// first).
func JccInverse(cond decode.Condition) (ccNibble byte, needsCMC bool) {
	switch cond {
	case decode.CondEQ:
		return 0x5, false // JNE
	case decode.CondNE:
		return 0x4, false // JE
	case decode.CondCS:
		return 0x3, false // JNC
	case decode.CondCC:
		return 0x2, false // JC
	case decode.CondHI:
		return 0x6, true // CMC; JNA
	case decode.CondLS:
		return 0x7, true // CMC; JA
	case decode.CondGE:
		return 0xC, false // JL
	case decode.CondLT:
		return 0xD, false // JGE
	case decode.CondGT:
		return 0xE, false // JLE
	case decode.CondLE:
		return 0xF, false // JG
	case decode.CondMI:
		return 0x9, false // JNS
	case decode.CondPL:
		return 0x8, false // JS
	case decode.CondVS:
		return 0x1, false // JNO
	case decode.CondVC:
		return 0x0, false // JO
	}
	return 0x5, false
}

// EmitCondPrelude emits the flag-load, optional CMC, and the inverse
// Jcc with a zeroed rel32 placeholder. It returns the offset of the
// 4-byte placeholder field, which the block builder back-patches with
// the emitted body's byte length once the instruction has been fully
// emitted (spec §4.2, §4.4).
func EmitCondPrelude(cb *codebuf.CodeBuffer, cond decode.Condition, flagsShadowAddr uintptr) (placeholderOffset int, err error) {
	if err := FlagLoadPrelude(cb, flagsShadowAddr); err != nil {
		return 0, err
	}
	cc, needsCMC := JccInverse(cond)
	if needsCMC {
		if err := Cmc(cb); err != nil {
			return 0, err
		}
	}
	if err := cb.AppendByte(0x0F); err != nil {
		return 0, err
	}
	if err := cb.AppendByte(0x80 | cc); err != nil {
		return 0, err
	}
	off := cb.Cursor()
	if err := cb.AppendDword(0); err != nil {
		return 0, err
	}
	return off, nil
}

// PatchCondPlaceholder back-patches the rel32 field at placeholderOffset
// with bodyLen, the number of bytes emitted by the guarded instruction
// body (spec §4.4: "write the emitted body length into the placeholder").
func PatchCondPlaceholder(cb *codebuf.CodeBuffer, placeholderOffset int, bodyLen int) {
	cb.PatchDword(placeholderOffset, uint32(bodyLen))
}
