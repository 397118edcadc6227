// Package arena runs blind pairwise comparisons between models sharing a
// capability class and turns votes into Elo rating updates.
package arena

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/modelarena/modelarena/internal/dispatch"
	"github.com/modelarena/modelarena/internal/models"
	"github.com/modelarena/modelarena/internal/quota"
	"github.com/modelarena/modelarena/internal/rating"
	"github.com/modelarena/modelarena/internal/registry"
	"github.com/modelarena/modelarena/internal/usage"
	log "github.com/sirupsen/logrus"
)

// Class selects which capability the arena compares.
type Class string

const (
	// ClassText compares text-generation models.
	ClassText Class = "text"
	// ClassImage compares image-generation models.
	ClassImage Class = "image"
)

// Arena error taxonomy.
var (
	// ErrNotEnoughModels indicates fewer than two models share the
	// requested capability class.
	ErrNotEnoughModels = errors.New("arena: not enough models for class")
	// ErrUnknownClass indicates an unrecognized arena class.
	ErrUnknownClass = errors.New("arena: unknown class")
	// ErrNoPendingPair indicates a vote arrived with no outstanding pair:
	// either the session never started a round or the pair was already
	// consumed. Stale and duplicate votes land here and are rejected
	// idempotently.
	ErrNoPendingPair = errors.New("arena: no pending pair for session")
)

// Choice is a vote cast for a finished round.
type Choice string

const (
	ChoiceFirst  Choice = "first"
	ChoiceSecond Choice = "second"
	ChoiceTie    Choice = "tie"
)

// scoreForChoice maps a vote to the Elo score of the first model.
func scoreForChoice(c Choice) (float64, error) {
	switch c {
	case ChoiceFirst:
		return rating.ScoreWin, nil
	case ChoiceSecond:
		return rating.ScoreLoss, nil
	case ChoiceTie:
		return rating.ScoreTie, nil
	default:
		return 0, fmt.Errorf("arena: unknown choice %q", c)
	}
}

func (c Class) capability() (registry.Capability, error) {
	switch c {
	case ClassText:
		return registry.TextToText, nil
	case ClassImage:
		return registry.TextToImg, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownClass, c)
	}
}

// RoundRequest starts one blind comparison for a session.
type RoundRequest struct {
	SessionID string
	UserID    uint64
	Class     Class
	Input     registry.Input
}

// Round holds both model outputs of a comparison, in pair order. Model
// identities are withheld until the vote resolves.
type Round struct {
	SessionID string
	Outputs   [2]registry.Output
}

// VoteResult reveals the compared pair and its rating movement.
type VoteResult struct {
	First, Second string
	Result        rating.MatchResult
}

// Engine runs arena rounds and consumes votes.
type Engine struct {
	reg      *registry.Registry
	quotas   *quota.Store
	ratings  *rating.Store
	pairs    PairStore
	recorder dispatch.Recorder

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewEngine constructs an arena Engine.
func NewEngine(reg *registry.Registry, quotas *quota.Store, ratings *rating.Store, pairs PairStore) *Engine {
	return &Engine{
		reg:     reg,
		quotas:  quotas,
		ratings: ratings,
		pairs:   pairs,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRecorder attaches an invocation audit recorder. A nil recorder keeps
// auditing off.
func (e *Engine) SetRecorder(r dispatch.Recorder) { e.recorder = r }

func (e *Engine) record(ctx context.Context, userID uint64, modelID string, failed bool) {
	if e.recorder == nil {
		return
	}
	e.recorder.Record(ctx, usage.Entry{
		UserID:  userID,
		ModelID: modelID,
		Source:  models.InvocationSourceArena,
		Failed:  failed,
	})
}

// draw picks two distinct models uniformly at random without replacement.
func (e *Engine) draw(candidates []registry.Model) (registry.Model, registry.Model) {
	e.mu.Lock()
	perm := e.rnd.Perm(len(candidates))
	e.mu.Unlock()
	return candidates[perm[0]], candidates[perm[1]]
}

// StartRound draws two models for the requested class, invokes both with the
// same input, and parks the pair until the vote. A round costs one quota unit
// regardless of comparing two models. Starting a new round replaces any
// unvoted pair for the session.
func (e *Engine) StartRound(ctx context.Context, req RoundRequest) (Round, error) {
	tag, errClass := req.Class.capability()
	if errClass != nil {
		return Round{}, errClass
	}

	candidates := e.reg.ByCapability(tag)
	if len(candidates) < 2 {
		return Round{}, fmt.Errorf("%w: %s has %d", ErrNotEnoughModels, req.Class, len(candidates))
	}

	if !e.quotas.CanAfford(ctx, req.UserID, dispatch.InvocationCost) {
		return Round{}, quota.ErrQuotaExceeded
	}

	first, second := e.draw(candidates)

	// Both invocations run unlocked; one provider failing does not cancel
	// the other, it just yields an absent output.
	var outputs [2]registry.Output
	var wg sync.WaitGroup
	for i, m := range []registry.Model{first, second} {
		wg.Add(1)
		go func(i int, m registry.Model) {
			defer wg.Done()
			out, errExec := m.Execute(ctx, req.Input)
			if errExec != nil {
				log.WithError(errExec).Warnf("arena: %s failed", m.Descriptor().ID())
				out = registry.None()
			}
			e.record(ctx, req.UserID, m.Descriptor().ID(), out.Kind == registry.OutputNone)
			outputs[i] = out
		}(i, m)
	}
	wg.Wait()

	// The invocations already happened, so the unit is charged even when
	// parking the pair fails below.
	if !e.quotas.Consume(ctx, req.UserID, dispatch.InvocationCost) {
		log.Warnf("arena: post-round consume failed for user %d", req.UserID)
	}

	pair := Pair{
		First:     first.Descriptor().ID(),
		Second:    second.Descriptor().ID(),
		Class:     req.Class,
		CreatedAt: time.Now().UTC(),
	}
	if errPut := e.pairs.Put(ctx, req.SessionID, pair); errPut != nil {
		return Round{}, errPut
	}

	return Round{SessionID: req.SessionID, Outputs: outputs}, nil
}

// Vote resolves the session's pending pair into an Elo update. The pair is
// consumed atomically before the update, so of two concurrent duplicate votes
// only one can apply; the other is rejected with ErrNoPendingPair and mutates
// nothing. A vote with no pending pair is rejected the same way.
func (e *Engine) Vote(ctx context.Context, sessionID string, choice Choice) (VoteResult, error) {
	scoreA, errChoice := scoreForChoice(choice)
	if errChoice != nil {
		return VoteResult{}, errChoice
	}

	pair, ok, errTake := e.pairs.Take(ctx, sessionID)
	if errTake != nil {
		// A corrupt pair was consumed by the take; the session is back in
		// the querying state.
		return VoteResult{}, fmt.Errorf("%w: %v", ErrNoPendingPair, errTake)
	}
	if !ok {
		return VoteResult{}, fmt.Errorf("%w: %s", ErrNoPendingPair, sessionID)
	}

	for _, id := range []string{pair.First, pair.Second} {
		if errEnsure := e.ratings.EnsureModel(ctx, id, displayNameFor(e.reg, id), capabilitiesFor(e.reg, id)); errEnsure != nil {
			return VoteResult{}, errEnsure
		}
	}

	res, errApply := e.ratings.ApplyMatch(ctx, pair.First, pair.Second, scoreA)
	if errApply != nil {
		return VoteResult{}, errApply
	}

	return VoteResult{First: pair.First, Second: pair.Second, Result: res}, nil
}

func displayNameFor(reg *registry.Registry, id string) string {
	if m, ok, err := reg.LookupID(id); err == nil && ok {
		return m.Descriptor().DisplayName()
	}
	return id
}

func capabilitiesFor(reg *registry.Registry, id string) []registry.Capability {
	if m, ok, err := reg.LookupID(id); err == nil && ok {
		return m.Descriptor().Capabilities
	}
	return nil
}
