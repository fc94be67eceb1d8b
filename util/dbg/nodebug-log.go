//go:build !debug
// +build !debug

package dbg

import (
	"log"
	"os"
	"sync/atomic"
)

// verbose is flipped by SetVerbose(true) when the binary is run with
// -debug; it lets a non-debug-tagged release build still surface
// Tracef/Debugf/Infof/Warnf output without being recompiled.
var verbose int32

func setVerbose(v bool) {
	if v {
		atomic.StoreInt32(&verbose, 1)
	} else {
		atomic.StoreInt32(&verbose, 0)
	}
}

type noOpDebugLoggerImpl struct {
	logger *log.Logger
}

func init() {
	debugLog = &noOpDebugLoggerImpl{logger: log.New(os.Stderr, "", 0)}
}

func (n *noOpDebugLoggerImpl) Tracef(format string, a ...interface{}) {
	if atomic.LoadInt32(&verbose) != 0 {
		n.logger.Printf(format, a...)
	}
}

func (n *noOpDebugLoggerImpl) Debugf(format string, a ...interface{}) {
	if atomic.LoadInt32(&verbose) != 0 {
		n.logger.Printf(format, a...)
	}
}

func (n *noOpDebugLoggerImpl) Infof(format string, a ...interface{}) {
	if atomic.LoadInt32(&verbose) != 0 {
		n.logger.Printf(format, a...)
	}
}

func (n *noOpDebugLoggerImpl) Warnf(format string, a ...interface{}) {
	if atomic.LoadInt32(&verbose) != 0 {
		n.logger.Printf(format, a...)
	}
}
