package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"activity-tracker/internal/domain"
)

// MemoryStore keeps samples in process memory. Contents are lost on exit.
type MemoryStore struct {
	mu      sync.RWMutex
	samples []domain.Sample
	nextID  int64
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Init() error {
	return nil
}

func (m *MemoryStore) Append(ctx context.Context, sample domain.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sample.Validate(); err != nil {
		return err
	}
	row := sample.Prepare(m.now())

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	row.ID = m.nextID
	m.samples = append(m.samples, row)
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, resourceID string, opts domain.QueryOptions) ([]domain.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	matched := []domain.Sample{}
	for _, s := range m.samples {
		if s.ResourceID == resourceID && opts.Contains(s.ObservedAt) {
			matched = append(matched, s)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.ObservedAt.Equal(b.ObservedAt) {
			if opts.Order == domain.OrderDescending {
				return a.ObservedAt.After(b.ObservedAt)
			}
			return a.ObservedAt.Before(b.ObservedAt)
		}
		if opts.Order == domain.OrderDescending {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})

	if limit := opts.EffectiveLimit(); limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.samples)), nil
}

func (m *MemoryStore) DistinctResources(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	seen := make(map[string]struct{})
	for _, s := range m.samples {
		seen[s.ResourceID] = struct{}{}
	}
	m.mu.RUnlock()

	resources := make([]string, 0, len(seen))
	for name := range seen {
		resources = append(resources, name)
	}
	sort.Strings(resources)
	return resources, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
