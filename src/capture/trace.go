package capture

import (
	"runtime"
	"strings"
)

const maxFrames = 64

// Frame is one call-frame descriptor of a stored stack trace.
type Frame struct {
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// callers returns the stack of the calling goroutine, skipping skip frames
// above the caller of callers.
func callers(skip int) []Frame {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		f, more := frames.Next()
		out = append(out, Frame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return out
}

// panicFrames drops everything up to and including the runtime panic
// machinery so the first frame is the one that panicked. The stack is
// returned unchanged when it was not captured during a panic.
func panicFrames(stack []Frame) []Frame {
	for i, f := range stack {
		if f.Function != "runtime.gopanic" {
			continue
		}
		rest := stack[i+1:]
		for len(rest) > 0 && strings.HasPrefix(rest[0].Function, "runtime.") {
			rest = rest[1:]
		}
		if len(rest) > 0 {
			return rest
		}
	}
	return stack
}

// trimPrefixes drops leading frames whose function belongs to one of the
// given package paths.
func trimPrefixes(stack []Frame, prefixes ...string) []Frame {
	for len(stack) > 0 && hasAnyPrefix(stack[0].Function, prefixes) {
		stack = stack[1:]
	}
	return stack
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// origin returns the file and line of the first frame, or zero values.
func origin(stack []Frame) (string, int) {
	if len(stack) == 0 {
		return "", 0
	}
	return stack[0].File, stack[0].Line
}
