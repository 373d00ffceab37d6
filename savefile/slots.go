package savefile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/treasury-engine/budget"
)

// ErrSaveNotFound is returned when no save matches a lookup.
var ErrSaveNotFound = errors.New("save not found")

// =============================================================================
// SAVE SLOTS - Named, stored save files
// =============================================================================

// Record is one stored save. Data is a complete file as written by Save.
type Record struct {
	ID        string
	Name      string
	Version   int
	Balance   float64
	CreatedAt time.Time
	Data      []byte
}

// Store keeps save records. List omits Data.
type Store interface {
	PutSave(ctx context.Context, rec Record) (Record, error)
	GetSave(ctx context.Context, id string) (Record, error)
	LatestSave(ctx context.Context) (Record, error)
	ListSaves(ctx context.Context) ([]Record, error)
}

// NewRecord fills ID and CreatedAt when they are empty.
func NewRecord(rec Record) Record {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}

// MemoryStore is an in-memory Store for tests and servers without a database.
type MemoryStore struct {
	mu    sync.RWMutex
	saves []Record
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) PutSave(_ context.Context, rec Record) (Record, error) {
	rec = NewRecord(rec)
	rec.Data = append([]byte(nil), rec.Data...)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, rec)
	return rec, nil
}

func (m *MemoryStore) GetSave(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.saves {
		if rec.ID == id {
			return rec, nil
		}
	}
	return Record{}, ErrSaveNotFound
}

func (m *MemoryStore) LatestSave(_ context.Context) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.saves) == 0 {
		return Record{}, ErrSaveNotFound
	}
	return m.saves[len(m.saves)-1], nil
}

func (m *MemoryStore) ListSaves(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, len(m.saves))
	for i, rec := range m.saves {
		rec.Data = nil
		out[i] = rec
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SaveTo writes e into a new record of store.
func SaveTo(ctx context.Context, store Store, name string, e *budget.Engine) (Record, error) {
	data, err := Marshal(e)
	if err != nil {
		return Record{}, err
	}
	return store.PutSave(ctx, Record{
		Name:    name,
		Version: CurrentVersion,
		Balance: e.Current().Balance(),
		Data:    data,
	})
}

// LoadFrom restores the record id of store into e.
func LoadFrom(ctx context.Context, store Store, id string, e *budget.Engine) (Record, error) {
	rec, err := store.GetSave(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if _, err := Unmarshal(rec.Data, e); err != nil {
		return Record{}, fmt.Errorf("load save %s: %w", id, err)
	}
	return rec, nil
}
