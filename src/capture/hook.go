package capture

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// CapturedKey marks log entries whose error was already captured directly.
const CapturedKey = "captured"

// LogHook forwards logrus entries to a Pipeline. Entries written by the
// ledger itself are ignored so a failing ledger cannot feed on its own logs.
type LogHook struct {
	pipeline *Pipeline
	levels   []logrus.Level
}

// NewLogHook creates a hook for levels, defaulting to error, fatal and panic.
func NewLogHook(p *Pipeline, levels ...logrus.Level) *LogHook {
	if len(levels) == 0 {
		levels = []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
	}
	return &LogHook{pipeline: p, levels: levels}
}

func (h *LogHook) Levels() []logrus.Level {
	return h.levels
}

func (h *LogHook) Fire(entry *logrus.Entry) error {
	if component, _ := entry.Data["component"].(string); component == LogComponent {
		return nil
	}
	if captured, _ := entry.Data[CapturedKey].(bool); captured {
		return nil
	}

	values := make(Context, len(entry.Data))
	for k, v := range entry.Data {
		values[k] = v
	}

	kind := "log." + entry.Level.String()
	if err, ok := entry.Data[logrus.ErrorKey].(error); ok && err != nil {
		kind = fmt.Sprintf("%T", err)
		values[logrus.ErrorKey] = err.Error()
	}

	var (
		file  string
		line  int
		stack = trimPrefixes(callers(0), "errorledger/src/capture.", "github.com/sirupsen/logrus.")
	)
	if entry.HasCaller() {
		file, line = entry.Caller.File, entry.Caller.Line
	} else {
		file, line = origin(stack)
	}

	h.pipeline.Capture(entry.Context, Report{
		Code:    entry.Level.String(),
		Message: entry.Message,
		File:    file,
		Line:    line,
		Kind:    kind,
		Trace:   stack,
		Context: values,
	})

	return nil
}
