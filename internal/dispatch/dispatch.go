// Package dispatch implements the dispatcher callouts bbTaken/bbNotTaken
// and the chaining mechanism (spec §4.5, C8).
//
// The callouts must be invocable via a raw x86 CALL from generated
// code, so they are plain, non-capturing, argument-less package-level
// functions operating on a single process-wide singleton (Dispatch),
// never methods or closures — a method or closure value's funcval
// carries extra context the funcPC trick below cannot account for.
// This is one of the two places the translator steps outside normal Go
// calling safety (the other is translator.callAt): it is confined to this package (spec §9's "the one
// place aliasing rules are violated in a controlled way", extended
// here from code-buffer patching to the callout address itself).
package dispatch

import (
	"os"
	"unsafe"

	"armx86jit/internal/block"
	"armx86jit/internal/codebuf"
	"armx86jit/internal/state"
	"armx86jit/util/dbg"
)

// HaltSentinel is the guest address that ends the emulated process
// (spec §4.5: "if nextBB is zero/sentinel, exit"). The guest loader
// initializes LR to zero (spec §3), so a top-level function returning
// via "MOV PC, LR" naturally lands here.
const HaltSentinel = 0

// Dispatch is the process-wide singleton the callouts read. It must
// be initialized (via Init) before any generated code can call
// BBTaken/BBNotTaken.
type Dispatch struct {
	GS       *state.GuestState
	CB       *codebuf.CodeBuffer
	Builder  *block.Builder
	Chaining bool

	// MaxSteps caps the number of dispatcher callout invocations before
	// the run is aborted; zero means unlimited (spec §6's "-max-steps"
	// CLI knob). Block transitions through an already chained call site
	// do not reach the callout and are not counted.
	MaxSteps uint64
	steps    uint64
}

var singleton *Dispatch

// Init installs the process-wide dispatcher singleton.
func Init(d *Dispatch) { singleton = d }

// BBTaken is the callout a Taken exit stub's CALL targets.
func BBTaken() { resolve(singleton.GS.TakenSrc) }

// BBNotTaken is the callout a NotTaken exit stub's CALL targets.
func BBNotTaken() { resolve(singleton.GS.UntakenSrc) }

// resolve implements spec §4.5 steps 1-4: look up nextBB, translate on
// miss, chain-patch the call site if eligible, and arrange to resume
// into the resolved block via GS.ResumeAddr (read by the exit stub's
// trailing "JMP [ResumeAddr]", since this Go function can only return,
// not jump, into an arbitrary address — spec §4.5 "Transfer to
// generated code").
func resolve(callSiteAddr uintptr) {
	d := singleton
	next := d.GS.NextBB
	if next == HaltSentinel {
		code := d.GS.Reg(0)
		dbg.Infof("guest halted, exit code %d", code)
		os.Exit(int(code))
	}

	d.steps++
	if d.MaxSteps != 0 && d.steps > d.MaxSteps {
		dbg.Warnf("max-steps %d reached at target %08x", d.MaxSteps, next)
		os.Exit(1)
	}

	host, ok := d.Builder.Cache.Lookup(next)
	if !ok {
		var err error
		host, err = d.Builder.Translate(next)
		if err != nil {
			dbg.Warnf("translation failed at %08x: %v", next, err)
			os.Exit(1)
		}
	}

	if d.Chaining && callSiteAddr != 0 {
		d.CB.PatchCallToJmp(callSiteAddr, host)
	}

	d.GS.ResumeAddr = host
}

// funcPC returns the stable entry address of a non-capturing,
// package-level function value, by reaching through the closure
// representation Go uses for func values: an interface{tab,data}
// wrapping a funcval{fn uintptr}. This depends on the layout the Go
// runtime has used for func values since the earliest releases with
// escape analysis; it is the standard trick hot-patching/JIT-in-Go
// tools (e.g. bouk/monkey) rely on, and is only ever applied to
// BBTaken/BBNotTaken, never to an arbitrary closure.
func funcPC(f func()) uintptr {
	type iface struct {
		tab, data unsafe.Pointer
	}
	type funcval struct {
		fn uintptr
	}
	return (*funcval)((*iface)(unsafe.Pointer(&f)).data).fn
}

// BBTakenAddr returns BBTaken's host entry address, for embedding into
// the Taken exit stub's CALL rel32.
func BBTakenAddr() uintptr { return funcPC(BBTaken) }

// BBNotTakenAddr returns BBNotTaken's host entry address.
func BBNotTakenAddr() uintptr { return funcPC(BBNotTaken) }
