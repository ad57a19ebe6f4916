package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"errorledger/src/model"
	"errorledger/src/repository"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

// LogComponent tags log entries written by the ledger itself.
const LogComponent = repository.LogComponent

// Outcome is the terminal state of a capture.
type Outcome int

const (
	Discarded Outcome = iota
	Stored
)

func (o Outcome) String() string {
	switch o {
	case Stored:
		return "stored"
	default:
		return "discarded"
	}
}

// Report is one error or exception as reported by the host.
type Report struct {
	Code    interface{} `json:"code"`
	Message string      `json:"message"`
	File    string      `json:"file"`
	Line    int         `json:"line"`
	Kind    string      `json:"type"`
	Trace   interface{} `json:"trace"`
	Context Context     `json:"context"`

	// Uncaught marks exception and panic reports; it only changes the
	// diagnostic line.
	Uncaught bool `json:"uncaught"`
}

// Result describes what happened to a capture.
type Result struct {
	Outcome   Outcome
	Signature string
	CaptureID string
	// Persisted is false when the ledger rejected the write.
	Persisted bool
}

type occurrenceRecorder interface {
	RecordOccurrence(ctx context.Context, signature string, fields model.ErrorFields, payload string) bool
}

type captureRecorder interface {
	RecordCapture(ctx context.Context, captureID string, signature string, fields model.ErrorFields, payload string) bool
}

// Pipeline turns host reports into ledger occurrences. A Pipeline with a nil
// ledger discards every capture.
type Pipeline struct {
	Config  Config
	Display io.Writer
	Log     *logger.Entry

	ledger occurrenceRecorder
}

// NewPipeline creates a pipeline writing to ledger. Pass a nil ledger when
// storage could not be initialized.
func NewPipeline(ledger occurrenceRecorder, config Config) *Pipeline {
	return &Pipeline{
		Config:  config,
		Display: os.Stderr,
		Log:     logger.WithField("component", LogComponent),
		ledger:  ledger,
	}
}

// Capture runs one report through signature derivation, context snapshot and
// ledger write.
func (p *Pipeline) Capture(ctx context.Context, report Report) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	if p.Config.DisplayErrors {
		p.display(report)
	}

	if p.ledger == nil {
		p.Log.WithField("type", report.Kind).Error("Error ledger not initialized, capture discarded")
		return Result{Outcome: Discarded}
	}

	signature, err := DeriveSignature(Fields{
		Code:    report.Code,
		Message: report.Message,
		File:    report.File,
		Line:    report.Line,
		Kind:    report.Kind,
	})
	if err != nil {
		p.Log.WithError(err).Error("Failed to encode error data for hashing, capture discarded")
		return Result{Outcome: Discarded}
	}

	payload := SnapshotContext(mergeContext(ValuesFromContext(ctx), report.Context))
	fields := model.ErrorFields{
		Code:       fmt.Sprint(report.Code),
		Message:    report.Message,
		SourceFile: report.File,
		SourceLine: report.Line,
		Kind:       report.Kind,
		StackTrace: EncodeTrace(report.Trace),
	}
	if report.Code == nil {
		fields.Code = ""
	}

	captureID := uuid.NewString()
	var persisted bool
	if recorder, ok := p.ledger.(captureRecorder); ok {
		persisted = recorder.RecordCapture(ctx, captureID, signature, fields, payload)
	} else {
		persisted = p.ledger.RecordOccurrence(ctx, signature, fields, payload)
	}

	p.Log.WithFields(map[string]interface{}{
		"signature":  signature,
		"capture_id": captureID,
		"persisted":  persisted,
	}).Debug("Capture completed")

	return Result{
		Outcome:   Stored,
		Signature: signature,
		CaptureID: captureID,
		Persisted: persisted,
	}
}

// CaptureError records a non-fatal error reported by code. The origin and
// trace are taken from the caller.
func (p *Pipeline) CaptureError(
	ctx context.Context,
	code int,
	message string,
	values Context,
) Result {
	stack := callers(1)
	file, line := origin(stack)
	return p.CaptureErrorAt(ctx, code, message, file, line, stack, values)
}

// CaptureErrorAt is CaptureError for hosts that already know the origin.
func (p *Pipeline) CaptureErrorAt(
	ctx context.Context,
	code int,
	message string,
	file string,
	line int,
	trace interface{},
	values Context,
) Result {
	return p.Capture(ctx, Report{
		Code:    code,
		Message: message,
		File:    file,
		Line:    line,
		Kind:    KindForCode(code),
		Trace:   trace,
		Context: values,
	})
}

// CaptureException records err as an uncaught exception raised at the
// caller. Its kind is the dynamic type of err.
func (p *Pipeline) CaptureException(ctx context.Context, err error, values Context) Result {
	if err == nil {
		return Result{Outcome: Discarded}
	}
	stack := callers(1)
	return p.captureUncaught(ctx, err, stack, values)
}

// CapturePanic records a value obtained from recover. It must be called from
// the deferred function that recovered, so the panic site is still on the
// stack.
func (p *Pipeline) CapturePanic(ctx context.Context, recovered interface{}, values Context) Result {
	if recovered == nil {
		return Result{Outcome: Discarded}
	}
	stack := panicFrames(callers(1))
	return p.captureUncaught(ctx, recovered, stack, values)
}

// Recover captures a panic in progress and stops it. Use it directly in a
// defer statement:
//
//	defer pipeline.Recover(ctx, nil)
func (p *Pipeline) Recover(ctx context.Context, values Context) {
	if r := recover(); r != nil {
		stack := panicFrames(callers(0))
		p.captureUncaught(ctx, r, stack, values)
	}
}

func (p *Pipeline) captureUncaught(ctx context.Context, value interface{}, stack []Frame, values Context) Result {
	file, line := origin(stack)
	return p.Capture(ctx, Report{
		Code:     exceptionCode(value),
		Message:  exceptionMessage(value),
		File:     file,
		Line:     line,
		Kind:     fmt.Sprintf("%T", value),
		Trace:    stack,
		Context:  values,
		Uncaught: true,
	})
}

type intCoder interface{ Code() int }

type stringCoder interface{ ErrorCode() string }

// exceptionCode reads an application code off err when it exposes one.
func exceptionCode(value interface{}) interface{} {
	err, ok := value.(error)
	if !ok {
		return 0
	}
	var ic intCoder
	if errors.As(err, &ic) {
		return ic.Code()
	}
	var sc stringCoder
	if errors.As(err, &sc) {
		return sc.ErrorCode()
	}
	return 0
}

func exceptionMessage(value interface{}) string {
	if err, ok := value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(value)
}
