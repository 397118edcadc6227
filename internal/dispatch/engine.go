// Package dispatch resolves a single-mode request to one registered model,
// gates it through the quota store, and normalizes the result.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelarena/modelarena/internal/models"
	"github.com/modelarena/modelarena/internal/quota"
	"github.com/modelarena/modelarena/internal/registry"
	"github.com/modelarena/modelarena/internal/usage"
	log "github.com/sirupsen/logrus"
)

// Dispatch error taxonomy. All are reported to the caller as structured
// outcomes; none terminates the process.
var (
	// ErrModelNotFound indicates a stale or unknown model id.
	ErrModelNotFound = errors.New("dispatch: model not found")
	// ErrCapabilityMismatch indicates the chosen model cannot handle the
	// input kind.
	ErrCapabilityMismatch = errors.New("dispatch: capability mismatch")
)

// InvocationCost is the quota cost of one model invocation. Arena rounds
// also cost one unit in total, regardless of invoking two models.
const InvocationCost = 1

// Transcriber adapts audio input to text, exposed by a designated
// non-user-selectable backend. A failed transcription yields ("", false),
// never an error.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, bool)
}

// Request is a single-mode invocation of one explicit model.
type Request struct {
	UserID  uint64
	ModelID string
	Input   registry.Input
}

// Result is the normalized outcome handed to the presentation layer.
type Result struct {
	ModelID string
	Output  registry.Output
}

// Recorder receives an audit entry for every attempted invocation.
type Recorder interface {
	Record(ctx context.Context, entry usage.Entry)
}

// Engine routes single-mode requests.
type Engine struct {
	reg         *registry.Registry
	quotas      *quota.Store
	transcriber Transcriber
	recorder    Recorder
}

// NewEngine constructs a dispatch Engine. transcriber may be nil when no
// transcription backend is configured; audio fallback then yields an absent
// result.
func NewEngine(reg *registry.Registry, quotas *quota.Store, transcriber Transcriber) *Engine {
	return &Engine{reg: reg, quotas: quotas, transcriber: transcriber}
}

// SetRecorder attaches an invocation audit recorder. A nil recorder keeps
// auditing off.
func (e *Engine) SetRecorder(r Recorder) { e.recorder = r }

func (e *Engine) record(ctx context.Context, userID uint64, modelID string, failed bool) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(ctx, usage.Entry{
		UserID:  userID,
		ModelID: modelID,
		Source:  models.InvocationSourceDispatch,
		Failed:  failed,
	})
}

// Dispatch resolves, gates, invokes, and normalizes one request.
//
// Quota is charged per attempted invocation: once the model call starts the
// unit is consumed whether or not the provider returned a usable result.
// Identification and capability failures charge nothing.
func (e *Engine) Dispatch(ctx context.Context, req Request) (Result, error) {
	model, ok, errLookup := e.reg.LookupID(req.ModelID)
	if errLookup != nil {
		return Result{}, errLookup
	}
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrModelNotFound, req.ModelID)
	}
	desc := model.Descriptor()

	in := req.Input
	switch in.Kind {
	case registry.InputText:
		// Text prompts are accepted by text models and by image generators,
		// which render the prompt.
		if !desc.Supports(registry.TextToText) && !desc.Supports(registry.TextToImg) {
			return Result{}, fmt.Errorf("%w: %s does not accept text", ErrCapabilityMismatch, desc.ID())
		}
	case registry.InputImage:
		if !desc.Supports(registry.ImgToText) {
			return Result{}, fmt.Errorf("%w: %s does not accept images", ErrCapabilityMismatch, desc.ID())
		}
	case registry.InputAudio:
		if !desc.Supports(registry.AudioToText) {
			// Fallback path: transcribe first, then dispatch the transcript
			// as text to the originally chosen model.
			if !desc.Supports(registry.TextToText) && !desc.Supports(registry.TextToImg) {
				return Result{}, fmt.Errorf("%w: %s does not accept audio", ErrCapabilityMismatch, desc.ID())
			}
		}
	default:
		return Result{}, fmt.Errorf("%w: unknown input kind", ErrCapabilityMismatch)
	}

	if !e.quotas.CanAfford(ctx, req.UserID, InvocationCost) {
		return Result{}, quota.ErrQuotaExceeded
	}

	if in.Kind == registry.InputAudio && !desc.Supports(registry.AudioToText) {
		text, ok := e.transcribe(ctx, in.Data)
		if !ok {
			// The transcription attempt counts as the invocation.
			e.consume(ctx, req.UserID)
			e.record(ctx, req.UserID, desc.ID(), true)
			return Result{ModelID: desc.ID(), Output: registry.None()}, nil
		}
		in = registry.Input{Kind: registry.InputText, Text: text}
	}

	// The provider call runs without holding any store lock.
	out, errExec := model.Execute(ctx, in)
	e.consume(ctx, req.UserID)
	e.record(ctx, req.UserID, desc.ID(), errExec != nil || out.Kind == registry.OutputNone)
	if errExec != nil {
		return Result{}, fmt.Errorf("dispatch: execute %s: %w", desc.ID(), errExec)
	}
	return Result{ModelID: desc.ID(), Output: out}, nil
}

func (e *Engine) transcribe(ctx context.Context, audio []byte) (string, bool) {
	if e.transcriber == nil {
		log.Warn("dispatch: audio input with no transcription backend configured")
		return "", false
	}
	return e.transcriber.Transcribe(ctx, audio)
}

func (e *Engine) consume(ctx context.Context, userID uint64) {
	if !e.quotas.Consume(ctx, userID, InvocationCost) {
		// The affordability check passed before the invocation; losing the
		// consume race here means the user exceeded the soft limit with
		// parallel requests.
		log.Warnf("dispatch: post-invocation consume failed for user %d", userID)
	}
}
