package exam

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryStore struct {
	mu      sync.RWMutex
	tests   map[string]Test
	results []Result
}

// NewInMemoryStore is used by tests and by the CLI preview path.
func NewInMemoryStore() Store {
	return &memoryStore{tests: map[string]Test{}}
}

func (m *memoryStore) PutTest(_ context.Context, t Test) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().Unix()
	}
	qs := make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		q.TestID = t.ID
		qs[i] = q
	}
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Position < qs[j].Position })
	t.Questions = qs
	m.tests[t.ID] = t
	return nil
}

func (m *memoryStore) GetTest(ctx context.Context, id string) (Test, error) {
	t, err := m.GetTestAdmin(ctx, id)
	if err != nil {
		return Test{}, err
	}
	return StripAnswers(t), nil
}

func (m *memoryStore) GetTestAdmin(_ context.Context, id string) (Test, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tests[id]
	if !ok {
		return Test{}, ErrNotFound
	}
	t.Questions = append([]Question(nil), t.Questions...)
	return t, nil
}

func (m *memoryStore) ListTests(_ context.Context, opts ListOpts) ([]TestSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	filter := strings.ToLower(strings.TrimSpace(opts.Q))
	all := make([]TestSummary, 0, len(m.tests))
	for _, t := range m.tests {
		if filter != "" && !strings.Contains(strings.ToLower(t.Title), filter) {
			continue
		}
		all = append(all, TestSummary{
			ID:            t.ID,
			Title:         t.Title,
			Description:   t.Description,
			Duration:      t.Duration,
			QuestionCount: len(t.Questions),
			CreatedAt:     t.CreatedAt,
		})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt != all[j].CreatedAt {
			return all[i].CreatedAt > all[j].CreatedAt
		}
		return all[i].ID < all[j].ID
	})
	limit, offset := clampList(opts.Limit, opts.Offset)
	return page(all, limit, offset), nil
}

func (m *memoryStore) DeleteTest(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tests[id]; !ok {
		return ErrNotFound
	}
	delete(m.tests, id)
	kept := m.results[:0]
	for _, r := range m.results {
		if r.TestID != id {
			kept = append(kept, r)
		}
	}
	m.results = kept
	return nil
}

func (m *memoryStore) SaveResult(_ context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tests[r.TestID]; !ok {
		return ErrNotFound
	}
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().Unix()
	}
	m.results = append(m.results, r)
	return nil
}

func (m *memoryStore) ListResults(_ context.Context, opts ResultListOpts) ([]Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Result{}
	for i := len(m.results) - 1; i >= 0; i-- {
		r := m.results[i]
		if opts.TestID != "" && r.TestID != opts.TestID {
			continue
		}
		if opts.UserID != "" && r.UserID != opts.UserID {
			continue
		}
		out = append(out, r)
	}
	limit, offset := clampList(opts.Limit, opts.Offset)
	return page(out, limit, offset), nil
}

func (m *memoryStore) GetResult(_ context.Context, id string) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.results {
		if r.ID == id {
			return r, nil
		}
	}
	return Result{}, ErrNotFound
}

func (m *memoryStore) SetFeedback(_ context.Context, resultID, feedback string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.results {
		if m.results[i].ID == resultID {
			m.results[i].Feedback = feedback
			m.results[i].Reviewed = true
			return m.results[i], nil
		}
	}
	return Result{}, ErrNotFound
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
