package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/kitbuilder587/abn-search/internal/domain"
)

// MockABNRepository - in-memory реестр для тестов сервиса и HTTP слоя.
type MockABNRepository struct {
	mu       sync.RWMutex
	entities map[string]domain.ABNEntity

	// если задан, Search возвращает эту ошибку
	SearchErr   error
	SearchCalls int
}

func NewMockABNRepository(entities ...domain.ABNEntity) *MockABNRepository {
	m := &MockABNRepository{entities: make(map[string]domain.ABNEntity)}
	for _, e := range entities {
		m.entities[e.ABN] = e
	}
	return m
}

func (m *MockABNRepository) Add(e domain.ABNEntity) {
	m.mu.Lock()
	m.entities[e.ABN] = e
	m.mu.Unlock()
}

func (m *MockABNRepository) Search(ctx context.Context, query string, limit int) ([]domain.ABNEntity, error) {
	m.mu.Lock()
	m.SearchCalls++
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []domain.ABNEntity
	if domain.IsABN(query) {
		if e, ok := m.entities[domain.NormalizeABN(query)]; ok {
			result = append(result, e)
		}
		return result, nil
	}

	needle := strings.ToLower(query)
	for _, e := range m.entities {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			result = append(result, e)
		}
	}

	// как в postgres: сначала активные, потом по имени
	sort.Slice(result, func(i, j int) bool {
		if result[i].IsActive() != result[j].IsActive() {
			return result[i].IsActive()
		}
		return result[i].Name < result[j].Name
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockABNRepository) GetByABN(ctx context.Context, abn string) (*domain.ABNEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.entities[domain.NormalizeABN(abn)]; ok {
		return &e, nil
	}
	return nil, domain.ErrABNNotFound
}

func (m *MockABNRepository) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.SearchCalls
}

// MockRecordStore запоминает все батчи.
type MockRecordStore struct {
	mu      sync.Mutex
	Batches [][]domain.ABRRecord

	UpsertFunc func(ctx context.Context, records []domain.ABRRecord) error
}

func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{}
}

func (m *MockRecordStore) UpsertBatch(ctx context.Context, records []domain.ABRRecord) error {
	if m.UpsertFunc != nil {
		if err := m.UpsertFunc(ctx, records); err != nil {
			return err
		}
	}

	batch := make([]domain.ABRRecord, len(records))
	copy(batch, records)

	m.mu.Lock()
	m.Batches = append(m.Batches, batch)
	m.mu.Unlock()
	return nil
}

func (m *MockRecordStore) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, b := range m.Batches {
		n += len(b)
	}
	return n
}
