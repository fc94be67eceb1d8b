// Package dbg provides the translator's debug logging. The active
// implementation is selected at compile time by the "debug" build tag
// (see debug-log.go / nodebug-log.go); callers never know which one is
// linked in.
package dbg

import "fmt"

// Logger is the interface our build-tag-selected implementations satisfy.
type Logger interface {
	Tracef(format string, a ...interface{})
	Debugf(format string, a ...interface{})
	Infof(format string, a ...interface{})
	Warnf(format string, a ...interface{})
}

// Global variable for our debug logger instance.
// This will be initialized by either debug-log.go or nodebug-log.go depending on build tags.
var debugLog Logger

func Tracef(format string, a ...interface{}) { debugLog.Tracef(format, a...) }
func Debugf(format string, a ...interface{}) { debugLog.Debugf(format, a...) }
func Infof(format string, a ...interface{})  { debugLog.Infof(format, a...) }
func Warnf(format string, a ...interface{})  { debugLog.Warnf(format, a...) }

// SetVerbose raises the non-debug-build logger's threshold so a single
// release binary can still show block-boundary traces when invoked with
// -debug, without recompiling with the debug tag. No-op in debug builds,
// which are always verbose.
func SetVerbose(v bool) { setVerbose(v) }

// DumpRegisters renders the 16-register guest file plus the flag shadow
// as a four-registers-per-line string. It only formats; the translator
// does not call it and prints no register dumps between blocks.
func DumpRegisters(reg [16]uint32, flagsShadow uint32) string {
	s := ""
	for i := 0; i < 16; i++ {
		s += fmt.Sprintf("r%-2d=%08x ", i, reg[i])
		if i%4 == 3 {
			s += "\n"
		}
	}
	return s + fmt.Sprintf("flags=%08x", flagsShadow)
}
