package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"jarvis/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestProtocolsRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	got, err := s.LoadProtocols(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no protocols, got %d", len(got))
	}

	resp := "Engaged."
	in := []domain.Protocol{
		domain.NewProtocol("Movie", "movie night", []domain.Action{
			{Type: domain.ActionLights, Value: "20"},
			{Type: domain.ActionWait, Value: "1"},
		}, &resp),
		domain.NewProtocol("Focus", "focus mode", []domain.Action{
			{Type: domain.ActionMusic, Value: "pause"},
		}, nil),
	}
	if err := s.SaveProtocols(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err = s.LoadProtocols(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Movie" || got[1].Name != "Focus" {
		t.Fatalf("order not preserved: %+v", got)
	}
	if got[0].Response == nil || *got[0].Response != "Engaged." || got[1].Response != nil {
		t.Fatalf("response mismatch: %+v", got)
	}
	if len(got[0].Actions) != 2 || got[0].Actions[1].Type != domain.ActionWait {
		t.Fatalf("actions mismatch: %+v", got[0].Actions)
	}

	if err := s.SaveProtocols(ctx, in[1:]); err != nil {
		t.Fatalf("save subset: %v", err)
	}
	got, _ = s.LoadProtocols(ctx)
	if len(got) != 1 || got[0].ID != in[1].ID {
		t.Fatalf("replace did not remove old rows: %+v", got)
	}
}

func TestFactsRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	added := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	facts := []domain.Fact{
		domain.NewFact("I prefer tea", added),
		domain.NewFact("my sister is Ana", added.Add(time.Hour)),
	}
	if err := s.SaveFacts(ctx, facts); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadFacts(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[1].Content != "my sister is Ana" {
		t.Fatalf("unexpected facts: %+v", got)
	}
	if !got[0].AddedAt.Equal(added) {
		t.Fatalf("added at %v, want %v", got[0].AddedAt, added)
	}

	if err := s.SaveFacts(ctx, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := s.LoadFacts(ctx); len(got) != 0 {
		t.Fatalf("expected cleared facts")
	}
}

func TestSettingsUpsert(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.Setting(ctx, "personality"); err != nil || ok {
		t.Fatalf("expected missing setting, ok=%v err=%v", ok, err)
	}
	if err := s.SetSetting(ctx, "personality", "friendly"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetSetting(ctx, "personality", "sarcastic"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := s.Setting(ctx, "personality")
	if err != nil || !ok || v != "sarcastic" {
		t.Fatalf("got %q ok=%v err=%v", v, ok, err)
	}
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "jarvis.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.SetSetting(context.Background(), "voice", "onyx"); err != nil {
		t.Fatalf("set: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if v, ok, _ := s.Setting(context.Background(), "voice"); !ok || v != "onyx" {
		t.Fatalf("setting not persisted: %q", v)
	}
}
