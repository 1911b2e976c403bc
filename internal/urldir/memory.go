package urldir

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/clickstream-go/internal/clickstream"
)

// CodeGenerator produces short codes for new records.
type CodeGenerator func() string

// MemoryDirectory is an in-memory Directory used in tests and
// single-process deployments.
type MemoryDirectory struct {
	mu           sync.RWMutex
	byID         map[string]*URLRecord
	byCode       map[string]string // code -> id
	generateCode CodeGenerator
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory(generator CodeGenerator) *MemoryDirectory {
	return &MemoryDirectory{
		byID:         make(map[string]*URLRecord),
		byCode:       make(map[string]string),
		generateCode: generator,
	}
}

func (m *MemoryDirectory) Create(_ context.Context, originalURL, ownerID string, expiresAt *time.Time) (*URLRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := &URLRecord{
		ID:          uuid.NewString(),
		ShortCode:   m.generateCode(),
		OriginalURL: originalURL,
		OwnerID:     ownerID,
		IsActive:    true,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}

	m.byID[record.ID] = record
	m.byCode[record.ShortCode] = record.ID

	return copyRecord(record), nil
}

func (m *MemoryDirectory) FindActiveByID(_ context.Context, id string) (*URLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.activeRecord(m.byID[id])
}

func (m *MemoryDirectory) FindActiveByCode(_ context.Context, code string) (*URLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.activeRecord(m.byID[m.byCode[code]])
}

func (m *MemoryDirectory) activeRecord(record *URLRecord) (*URLRecord, error) {
	if record == nil || !record.IsActive || record.Expired(time.Now()) {
		return nil, clickstream.ErrNotFound
	}

	return copyRecord(record), nil
}

func (m *MemoryDirectory) IncrementCounters(_ context.Context, id string, unique bool, at time.Time) (clickstream.URLStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.byID[id]
	if !ok {
		return clickstream.URLStats{}, clickstream.ErrNotFound
	}

	record.Stats.TotalClicks++
	if unique {
		record.Stats.UniqueClicks++
	}

	clicked := at
	record.Stats.LastClickedAt = &clicked

	return record.Stats, nil
}

func (m *MemoryDirectory) ListByOwner(_ context.Context, ownerID string) ([]*URLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*URLRecord, 0)

	for _, record := range m.byID {
		if record.OwnerID == ownerID {
			records = append(records, copyRecord(record))
		}
	}

	return records, nil
}

// Deactivate marks a record inactive. Used by tests to exercise the
// NotFound path.
func (m *MemoryDirectory) Deactivate(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.byID[id]; ok {
		record.IsActive = false
	}
}

func copyRecord(record *URLRecord) *URLRecord {
	copied := *record

	return &copied
}
