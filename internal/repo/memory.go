package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Skyline/internal/domain"
)

// MemoryRunStore — in-memory хранилище runs для одного процесса.
//
// Проверка активного run и вставка выполняются под одной блокировкой.
// Хранит копии: вызывающий может менять свой *domain.Run без гонок.
type MemoryRunStore struct {
	mu      sync.RWMutex
	runs    map[uuid.UUID]*domain.Run
	active  map[string]uuid.UUID
	beats   map[uuid.UUID]time.Time
	dropped []domain.DroppedTrigger
}

// NewMemoryRunStore создаёт пустое хранилище.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs:   make(map[uuid.UUID]*domain.Run),
		active: make(map[string]uuid.UUID),
		beats:  make(map[uuid.UUID]time.Time),
	}
}

func (s *MemoryRunStore) Begin(_ context.Context, run *domain.Run) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, exists := s.active[run.Pipeline]; exists {
		return id, fmt.Errorf("%w: %s (run %s)", domain.ErrRunActive, run.Pipeline, id)
	}
	if _, exists := s.runs[run.ID]; exists {
		return uuid.Nil, fmt.Errorf("%w: run %s", ErrAlreadyExists, run.ID)
	}

	s.runs[run.ID] = run.Clone()
	if !run.IsFinished() {
		s.active[run.Pipeline] = run.ID
		s.beats[run.ID] = time.Now()
	}
	return run.ID, nil
}

func (s *MemoryRunStore) Save(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.runs[run.ID]
	if !exists {
		return ErrNotFound
	}
	if stored.IsFinished() {
		return fmt.Errorf("%w: %w: run %s", ErrInvalidState, domain.ErrRunNotInProgress, run.ID)
	}

	s.runs[run.ID] = run.Clone()
	s.beats[run.ID] = time.Now()
	if run.IsFinished() && s.active[run.Pipeline] == run.ID {
		delete(s.active, run.Pipeline)
		delete(s.beats, run.ID)
	}
	return nil
}

// Heartbeat продлевает lease активного run.
func (s *MemoryRunStore) Heartbeat(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.runs[id]
	if !exists {
		return ErrNotFound
	}
	if stored.IsFinished() {
		return fmt.Errorf("%w: %w: run %s", ErrInvalidState, domain.ErrRunNotInProgress, id)
	}
	s.beats[id] = time.Now()
	return nil
}

func (s *MemoryRunStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, ErrNotFound
	}
	return run.Clone(), nil
}

func (s *MemoryRunStore) GetActive(_ context.Context, pipeline string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.active[pipeline]
	if !exists {
		return nil, ErrNotFound
	}
	return s.runs[id].Clone(), nil
}

func (s *MemoryRunStore) List(_ context.Context, filter RunFilter) ([]domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []domain.Run
	for _, run := range s.runs {
		if filter.Pipeline != "" && run.Pipeline != filter.Pipeline {
			continue
		}
		if filter.Outcome != "" && run.Outcome != filter.Outcome {
			continue
		}
		runs = append(runs, *run.Clone())
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})

	return paginate(runs, filter.Limit, filter.Offset), nil
}

// AbortStale помечает aborted активные runs, lease которых не продлевался дольше staleAfter.
func (s *MemoryRunStore) AbortStale(_ context.Context, reason string, staleAfter time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-staleAfter)
	n := 0
	for pipeline, id := range s.active {
		if s.beats[id].After(cutoff) {
			continue
		}
		if err := s.runs[id].MarkAborted(reason); err == nil {
			n++
		}
		delete(s.active, pipeline)
		delete(s.beats, id)
	}
	return n, nil
}

func (s *MemoryRunStore) RecordDropped(_ context.Context, d domain.DroppedTrigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.DroppedAt.IsZero() {
		d.DroppedAt = time.Now()
	}
	s.dropped = append(s.dropped, d)
	return nil
}

func (s *MemoryRunStore) ListDropped(_ context.Context, pipeline string, limit int) ([]domain.DroppedTrigger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.DroppedTrigger
	for i := len(s.dropped) - 1; i >= 0; i-- {
		if pipeline != "" && s.dropped[i].Pipeline != pipeline {
			continue
		}
		out = append(out, s.dropped[i])
	}
	return paginate(out, limit, 0), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 50
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
