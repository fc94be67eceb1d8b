// Package exectest provides the one primitive the test suite needs
// that internal/translator.callAt deliberately does not: a way to
// call into freshly emitted x86 bytes and get control back in Go
// afterward. Generated code under test ends in a plain RET (0xC3)
// rather than the real exit-stub/dispatcher protocol, so CallRet's
// tail-jump trampoline returns exactly where a normal Go call would.
package exectest

// CallRet transfers control to the executable code at addr and
// returns once that code executes a RET. It relies on the same
// tail-jump trick as translator.callAt: CallRet itself never pushes a
// new return address (NOSPLIT, zero-size frame) before jumping, so
// the RET at addr pops the address CallRet's own caller left on the
// stack and resumes there, exactly as if CallRet had returned
// normally.
func CallRet(addr uintptr)
