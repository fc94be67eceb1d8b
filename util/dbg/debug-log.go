//go:build debug
// +build debug

package dbg

import (
	"fmt"
	"log"
	"os"
)

type debugLoggerImpl struct {
	logger *log.Logger
}

// init function for the debug build.
// This will be called when the 'debug' tag is active.
func init() {
	debugLog = &debugLoggerImpl{
		logger: log.New(os.Stderr, "", log.Lshortfile),
	}
}

func (d *debugLoggerImpl) Tracef(format string, a ...interface{}) {
	d.logger.Output(3, "TRACE "+fmt.Sprintf(format, a...))
}

func (d *debugLoggerImpl) Debugf(format string, a ...interface{}) {
	d.logger.Output(3, "DEBUG "+fmt.Sprintf(format, a...))
}

func (d *debugLoggerImpl) Infof(format string, a ...interface{}) {
	d.logger.Output(3, "INFO  "+fmt.Sprintf(format, a...))
}

func (d *debugLoggerImpl) Warnf(format string, a ...interface{}) {
	d.logger.Output(3, "WARN  "+fmt.Sprintf(format, a...))
}

// setVerbose is a no-op in debug builds: they are unconditionally verbose.
func setVerbose(bool) {}
