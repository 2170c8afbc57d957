package propertyloader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/rpattn/rowql/internal/domain"
)

type stubPropertyRepo struct {
	mu    sync.Mutex
	calls int
	props map[uuid.UUID]domain.Property
	err   error
}

func (s *stubPropertyRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Property, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Property
	for _, id := range ids {
		if p, ok := s.props[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubPropertyRepo) ListByEntity(context.Context, uuid.UUID) ([]domain.Property, error) {
	return nil, nil
}

func TestLoadManyBatchesAndPreservesOrder(t *testing.T) {
	a := domain.Property{ID: uuid.New(), Name: "a"}
	b := domain.Property{ID: uuid.New(), Name: "b"}
	repo := &stubPropertyRepo{props: map[uuid.UUID]domain.Property{a.ID: a, b.ID: b}}
	loader := NewPropertyLoader(repo)

	got, err := LoadMany(context.Background(), loader.Loader, []uuid.UUID{b.ID, uuid.New(), a.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "b" || got[1].Name != "a" {
		t.Fatalf("unexpected properties %+v", got)
	}
	if repo.calls != 1 {
		t.Fatalf("expected a single batch, got %d calls", repo.calls)
	}
}

func TestLoadManyPropagatesErrors(t *testing.T) {
	repo := &stubPropertyRepo{err: errors.New("boom")}
	loader := NewPropertyLoader(repo)

	if _, err := LoadMany(context.Background(), loader.Loader, []uuid.UUID{uuid.New()}); err == nil {
		t.Fatalf("expected error")
	}
}
