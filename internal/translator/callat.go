package translator

// callAt transfers control to the translated code at host address
// addr and never returns to its caller: the generated code stream's
// dispatcher callouts (internal/dispatch) end the run via os.Exit, not
// via a normal function return, so there is no Go-expressible call
// site this could be written as — Go has no "jump to this raw address"
// statement. This is the one other place (besides dispatch.funcPC)
// the translator steps outside normal Go calling conventions, and it
// is confined to this single assembly trampoline.
func callAt(addr uintptr)
