package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

const callerDepth = 24

var skippedCallers = []string{"sirupsen/logrus", "recessionflow/logger."}

// callerHook points entry.Caller at the first frame outside logrus and the
// wrappers in this package.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, callerDepth)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !isSkippedCaller(frame.Function) {
			entry.Caller = &frame
			return nil
		}
		if !more {
			return nil
		}
	}
}

func isSkippedCaller(fn string) bool {
	for _, s := range skippedCallers {
		if strings.Contains(fn, s) {
			return true
		}
	}
	return false
}
