package arena

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/modelarena/modelarena/internal/models"
	"github.com/modelarena/modelarena/internal/quota"
	"github.com/modelarena/modelarena/internal/rating"
	"github.com/modelarena/modelarena/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubModel struct {
	desc  registry.Descriptor
	out   registry.Output
	fail  bool
	calls int
}

func (m *stubModel) Descriptor() registry.Descriptor { return m.desc }

func (m *stubModel) Execute(_ context.Context, _ registry.Input) (registry.Output, error) {
	m.calls++
	if m.fail {
		return registry.None(), nil
	}
	return m.out, nil
}

func newStub(provider, version string, tag registry.Capability) *stubModel {
	return &stubModel{
		desc: registry.Descriptor{
			Provider:     provider,
			Version:      version,
			Capabilities: []registry.Capability{tag},
			UserVisible:  true,
		},
		out: registry.Output{Kind: registry.OutputText, Text: provider},
	}
}

func newFixture(t *testing.T, modelList ...registry.Model) (*Engine, *quota.Store, *rating.Store) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&models.User{}, &models.ModelRating{}))

	reg := registry.New()
	for _, m := range modelList {
		require.NoError(t, reg.Register(m))
	}
	quotas := quota.NewStore(conn, 20)
	ratings := rating.NewStore(conn)
	require.NoError(t, ratings.SyncRegistry(context.Background(), reg))

	return NewEngine(reg, quotas, ratings, NewMemoryPairStore()), quotas, ratings
}

func textInput(s string) registry.Input {
	return registry.Input{Kind: registry.InputText, Text: s}
}

func TestStartRound_DrawsBothOfTwo(t *testing.T) {
	a := newStub("a", "1", registry.TextToText)
	b := newStub("b", "1", registry.TextToText)
	e, _, _ := newFixture(t, a, b)

	round, err := e.StartRound(context.Background(), RoundRequest{
		SessionID: "s1", UserID: 1, Class: ClassText, Input: textInput("hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)

	got := map[string]bool{round.Outputs[0].Text: true, round.Outputs[1].Text: true}
	assert.True(t, got["a"] && got["b"], "both models must answer, in some order")

	pair, ok, err := e.pairs.Get(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, pair.First, pair.Second)
}

func TestStartRound_NotEnoughModels(t *testing.T) {
	only := newStub("a", "1", registry.TextToText)
	e, quotas, _ := newFixture(t, only)
	ctx := context.Background()

	_, err := e.StartRound(ctx, RoundRequest{
		SessionID: "s1", UserID: 1, Class: ClassText, Input: textInput("hi"),
	})
	require.ErrorIs(t, err, ErrNotEnoughModels)

	_, ok, errGet := e.pairs.Get(ctx, "s1")
	require.NoError(t, errGet)
	assert.False(t, ok, "no pair may be stored")

	info, errInfo := quotas.GetInfo(ctx, 1)
	require.NoError(t, errInfo)
	assert.Zero(t, info.Used, "failed draw must not charge quota")

	_, err = e.StartRound(ctx, RoundRequest{
		SessionID: "s1", UserID: 1, Class: ClassImage, Input: textInput("hi"),
	})
	require.ErrorIs(t, err, ErrNotEnoughModels, "zero-model class fails the same way")
}

func TestStartRound_ChargesOneUnit(t *testing.T) {
	e, quotas, _ := newFixture(t,
		newStub("a", "1", registry.TextToText),
		newStub("b", "1", registry.TextToText),
	)
	ctx := context.Background()

	_, err := e.StartRound(ctx, RoundRequest{
		SessionID: "s1", UserID: 3, Class: ClassText, Input: textInput("hi"),
	})
	require.NoError(t, err)

	info, errInfo := quotas.GetInfo(ctx, 3)
	require.NoError(t, errInfo)
	assert.Equal(t, 1, info.Used, "a round costs one unit despite two invocations")
}

func TestStartRound_OneFailureDoesNotCancelOther(t *testing.T) {
	a := newStub("a", "1", registry.TextToText)
	a.fail = true
	b := newStub("b", "1", registry.TextToText)
	e, _, _ := newFixture(t, a, b)

	round, err := e.StartRound(context.Background(), RoundRequest{
		SessionID: "s1", UserID: 1, Class: ClassText, Input: textInput("hi"),
	})
	require.NoError(t, err)

	kinds := map[registry.OutputKind]int{}
	for _, out := range round.Outputs {
		kinds[out.Kind]++
	}
	assert.Equal(t, 1, kinds[registry.OutputNone], "failed model yields absent output")
	assert.Equal(t, 1, kinds[registry.OutputText], "healthy model still answers")

	_, ok, errGet := e.pairs.Get(context.Background(), "s1")
	require.NoError(t, errGet)
	assert.True(t, ok, "pair is stored even with one absent output")
}

func TestVote_UpdatesRatingsZeroSum(t *testing.T) {
	e, _, ratings := newFixture(t,
		newStub("a", "1", registry.TextToText),
		newStub("b", "1", registry.TextToText),
	)
	ctx := context.Background()

	require.NoError(t, ratings.Set(ctx, "a:1", 1000))
	require.NoError(t, ratings.Set(ctx, "b:1", 1200))

	_, err := e.StartRound(ctx, RoundRequest{
		SessionID: "s1", UserID: 1, Class: ClassText, Input: textInput("hi"),
	})
	require.NoError(t, err)

	// Force a deterministic pair order for the assertion.
	require.NoError(t, e.pairs.Put(ctx, "s1", Pair{First: "a:1", Second: "b:1", Class: ClassText}))

	res, err := e.Vote(ctx, "s1", ChoiceFirst)
	require.NoError(t, err)
	assert.Equal(t, "a:1", res.First)
	assert.Greater(t, res.Result.NewA, 1000)
	assert.Less(t, res.Result.NewB, 1200)
	assert.Equal(t, res.Result.NewA-res.Result.OldA, -(res.Result.NewB - res.Result.OldB))

	gotA, _, _ := ratings.Get(ctx, "a:1")
	gotB, _, _ := ratings.Get(ctx, "b:1")
	assert.Equal(t, res.Result.NewA, gotA)
	assert.Equal(t, res.Result.NewB, gotB)
}

func TestVote_TieBetweenEqualsKeepsRatings(t *testing.T) {
	e, _, _ := newFixture(t,
		newStub("a", "1", registry.TextToText),
		newStub("b", "1", registry.TextToText),
	)
	ctx := context.Background()

	_, err := e.StartRound(ctx, RoundRequest{
		SessionID: "s1", UserID: 1, Class: ClassText, Input: textInput("hi"),
	})
	require.NoError(t, err)

	res, err := e.Vote(ctx, "s1", ChoiceTie)
	require.NoError(t, err)
	assert.Equal(t, res.Result.OldA, res.Result.NewA)
	assert.Equal(t, res.Result.OldB, res.Result.NewB)
}

func TestVote_DoubleVoteRejected(t *testing.T) {
	e, _, ratings := newFixture(t,
		newStub("a", "1", registry.TextToText),
		newStub("b", "1", registry.TextToText),
	)
	ctx := context.Background()

	_, err := e.StartRound(ctx, RoundRequest{
		SessionID: "s1", UserID: 1, Class: ClassText, Input: textInput("hi"),
	})
	require.NoError(t, err)

	first, err := e.Vote(ctx, "s1", ChoiceFirst)
	require.NoError(t, err)

	_, err = e.Vote(ctx, "s1", ChoiceFirst)
	require.ErrorIs(t, err, ErrNoPendingPair, "second vote must be rejected as stale")

	gotA, _, _ := ratings.Get(ctx, first.First)
	gotB, _, _ := ratings.Get(ctx, first.Second)
	assert.Equal(t, first.Result.NewA, gotA, "ratings must not move a second time")
	assert.Equal(t, first.Result.NewB, gotB)
}

func TestVote_WithoutRound(t *testing.T) {
	e, _, _ := newFixture(t,
		newStub("a", "1", registry.TextToText),
		newStub("b", "1", registry.TextToText),
	)
	_, err := e.Vote(context.Background(), "ghost-session", ChoiceTie)
	require.ErrorIs(t, err, ErrNoPendingPair)
}

func TestVote_UnknownChoice(t *testing.T) {
	e, _, _ := newFixture(t,
		newStub("a", "1", registry.TextToText),
		newStub("b", "1", registry.TextToText),
	)
	_, err := e.Vote(context.Background(), "s1", Choice("fourth"))
	require.Error(t, err)
}

func TestStartRound_QuotaExceeded(t *testing.T) {
	a := newStub("a", "1", registry.TextToText)
	b := newStub("b", "1", registry.TextToText)
	e, quotas, _ := newFixture(t, a, b)
	ctx := context.Background()

	require.True(t, quotas.Consume(ctx, 8, 20))

	_, err := e.StartRound(ctx, RoundRequest{
		SessionID: "s1", UserID: 8, Class: ClassText, Input: textInput("hi"),
	})
	require.ErrorIs(t, err, quota.ErrQuotaExceeded)
	assert.Zero(t, a.calls+b.calls, "no model may be invoked past the limit")
}

func TestMemoryPairStore_SessionsIsolated(t *testing.T) {
	s := NewMemoryPairStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "s1", Pair{First: "a:1", Second: "b:1"}))
	require.NoError(t, s.Put(ctx, "s2", Pair{First: "c:1", Second: "d:1"}))

	taken, ok, err := s.Take(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a:1", taken.First)

	_, ok, err = s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok, "a taken pair is gone")

	pair, ok, err := s.Get(ctx, "s2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c:1", pair.First)
}

func TestMemoryPairStore_ExpiresAbandonedPairs(t *testing.T) {
	s := NewMemoryPairStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "old", Pair{
		First:     "a:1",
		Second:    "b:1",
		CreatedAt: time.Now().Add(-25 * time.Hour),
	}))
	require.NoError(t, s.Put(ctx, "fresh", Pair{
		First:     "c:1",
		Second:    "d:1",
		CreatedAt: time.Now(),
	}))

	_, ok, err := s.Get(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok, "a pair past the TTL is dropped on access")

	_, ok, err = s.Take(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVote_ConcurrentDuplicateAppliesOnce(t *testing.T) {
	e, _, ratings := newFixture(t,
		newStub("a", "1", registry.TextToText),
		newStub("b", "1", registry.TextToText),
	)
	ctx := context.Background()

	_, err := e.StartRound(ctx, RoundRequest{
		SessionID: "s1", UserID: 1, Class: ClassText, Input: textInput("hi"),
	})
	require.NoError(t, err)
	require.NoError(t, e.pairs.Put(ctx, "s1", Pair{
		First: "a:1", Second: "b:1", Class: ClassText, CreatedAt: time.Now().UTC(),
	}))

	// Both voters hold until released, then race for the same pair.
	start := make(chan struct{})
	var wg sync.WaitGroup
	var applied int32
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, errVote := e.Vote(ctx, "s1", ChoiceFirst); errVote == nil {
				atomic.AddInt32(&applied, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, applied, "exactly one duplicate vote may land")

	gotA, _, errA := ratings.Get(ctx, "a:1")
	require.NoError(t, errA)
	gotB, _, errB := ratings.Get(ctx, "b:1")
	require.NoError(t, errB)
	assert.Equal(t, 1016, gotA, "the update must apply once, not twice")
	assert.Equal(t, 984, gotB)
}

type failingPairStore struct {
	PairStore
}

func (failingPairStore) Put(context.Context, string, Pair) error {
	return errors.New("store down")
}

func TestStartRound_ChargesEvenWhenPairStoreFails(t *testing.T) {
	e, quotas, _ := newFixture(t,
		newStub("a", "1", registry.TextToText),
		newStub("b", "1", registry.TextToText),
	)
	e.pairs = failingPairStore{}
	ctx := context.Background()

	_, err := e.StartRound(ctx, RoundRequest{
		SessionID: "s1", UserID: 5, Class: ClassText, Input: textInput("hi"),
	})
	require.Error(t, err)

	info, errInfo := quotas.GetInfo(ctx, 5)
	require.NoError(t, errInfo)
	assert.Equal(t, 1, info.Used, "the attempted invocations are charged despite the store failure")
}
