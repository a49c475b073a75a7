package tilegraph

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sslab-gatech/tile-graph/pkg/utils"
)

// FatalSink is the single place every component calls to report a
// CorruptionError or unrecoverable IOError (spec §7, §9's "single
// fatal-error sink reached by result-returning functions"). It logs a
// red-banner-style message with component/file/line and a best-effort
// backtrace, then exits the process non-zero — there is no panic/recover
// dance, matching the source's hard-abort semantics.
type FatalSink struct {
	logger utils.Logger
	exit   func(code int)
}

// NewFatalSink constructs a sink that logs through logger and calls os.Exit.
func NewFatalSink(logger utils.Logger) *FatalSink {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &FatalSink{logger: logger, exit: os.Exit}
}

// Fatal logs component/message/err with caller file:line and terminates the
// process with exit code 1. It never returns.
func (f *FatalSink) Fatal(component string, err error) {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file, line = "unknown", 0
	}
	msg := fmt.Sprintf("FATAL [%s] %s:%d: %v", component, file, line, err)
	fmt.Fprintln(os.Stderr, "\x1b[41;97m"+msg+"\x1b[0m")
	f.logger.Error(msg)
	fmt.Fprintln(os.Stderr, string(debugStack()))
	f.exit(1)
}

func debugStack() []byte {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, false)
	return buf[:n]
}
