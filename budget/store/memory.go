// Package store provides Archive implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/treasury-engine/budget"
)

// =============================================================================
// MEMORY ARCHIVE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	budgets map[int]budget.Budget
}

func NewMemory() *Memory {
	return &Memory{budgets: make(map[int]budget.Budget)}
}

func (m *Memory) SaveBudget(_ context.Context, b budget.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgets[b.Year] = b
	return nil
}

func (m *Memory) Budget(_ context.Context, year int) (budget.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.budgets[year]
	if !ok {
		return budget.Budget{}, budget.ErrBudgetNotFound
	}
	return b, nil
}

func (m *Memory) Budgets(_ context.Context) ([]budget.Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]budget.Budget, 0, len(m.budgets))
	for _, b := range m.budgets {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Year < result[j].Year })
	return result, nil
}

// Len is the number of archived years.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.budgets)
}
