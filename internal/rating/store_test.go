package rating

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/modelarena/modelarena/internal/models"
	"github.com/modelarena/modelarena/internal/registry"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("raw db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := conn.AutoMigrate(&models.ModelRating{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return NewStore(conn)
}

func TestEnsureModel_SeedsOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnsureModel(ctx, "gemini:2.0-flash", "Gemini 2.0-flash", []registry.Capability{registry.TextToText}); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := s.Set(ctx, "gemini:2.0-flash", 1100); err != nil {
		t.Fatalf("set: %v", err)
	}

	// A second ensure must not reset the stored rating.
	if err := s.EnsureModel(ctx, "gemini:2.0-flash", "Gemini 2.0-flash", nil); err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
	got, ok, err := s.Get(ctx, "gemini:2.0-flash")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got != 1100 {
		t.Fatalf("expected rating 1100 preserved, got %d", got)
	}
}

func TestGet_AbsentModel(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Get(context.Background(), "ghost:v1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected absent rating for unknown model")
	}
}

func TestListSorted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := map[string]int{
		"a:1": 990,
		"b:1": 1210,
		"c:1": 1050,
	}
	for id := range seed {
		if err := s.EnsureModel(ctx, id, id, nil); err != nil {
			t.Fatalf("ensure: %v", err)
		}
	}
	for id, r := range seed {
		if err := s.Set(ctx, id, r); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	rows, err := s.ListSorted(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 || rows[0].ModelID != "b:1" || rows[1].ModelID != "c:1" || rows[2].ModelID != "a:1" {
		t.Fatalf("unexpected order: %+v", rows)
	}

	rows, err = s.ListSorted(ctx, 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected limit respected, got %d rows", len(rows))
	}
}

func TestApplyMatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a:1", "b:1"} {
		if err := s.EnsureModel(ctx, id, id, nil); err != nil {
			t.Fatalf("ensure: %v", err)
		}
	}
	if err := s.Set(ctx, "b:1", 1200); err != nil {
		t.Fatalf("set: %v", err)
	}

	res, err := s.ApplyMatch(ctx, "a:1", "b:1", ScoreWin)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if res.NewA <= 1000 || res.NewB >= 1200 {
		t.Fatalf("winner must gain and loser lose: %+v", res)
	}
	if (res.NewA - res.OldA) != -(res.NewB - res.OldB) {
		t.Fatalf("match not zero-sum: %+v", res)
	}

	gotA, _, _ := s.Get(ctx, "a:1")
	gotB, _, _ := s.Get(ctx, "b:1")
	if gotA != res.NewA || gotB != res.NewB {
		t.Fatalf("persisted ratings %d/%d do not match result %+v", gotA, gotB, res)
	}
}

func TestApplyMatch_SameModelRejected(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.ApplyMatch(context.Background(), "a:1", "a:1", ScoreTie); err == nil {
		t.Fatal("expected error for identical model ids")
	}
}

func TestSyncRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	reg := registry.New()
	for _, m := range []registry.Model{
		staticModel{registry.Descriptor{Provider: "gemini", Version: "flash", Capabilities: []registry.Capability{registry.TextToText}, UserVisible: true}},
		staticModel{registry.Descriptor{Provider: "flux", Version: "schnell", Capabilities: []registry.Capability{registry.TextToImg}, UserVisible: true}},
	} {
		if err := reg.Register(m); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	if err := s.SyncRegistry(ctx, reg); err != nil {
		t.Fatalf("sync: %v", err)
	}
	rows, err := s.ListSorted(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 synced rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Rating != models.DefaultSeedRating {
			t.Fatalf("expected seed rating, got %d", row.Rating)
		}
	}
}

type staticModel struct {
	desc registry.Descriptor
}

func (m staticModel) Descriptor() registry.Descriptor { return m.desc }

func (m staticModel) Execute(_ context.Context, _ registry.Input) (registry.Output, error) {
	return registry.None(), nil
}
