package lead

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps leads in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	leads []Lead
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) FindByContact(_ context.Context, email, phone string) (Lead, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(email, phone); i >= 0 {
		return m.leads[i], true, nil
	}
	return Lead{}, false, nil
}

func (m *MemoryStore) indexOf(email, phone string) int {
	for i, l := range m.leads {
		if (email != "" && l.Email == email) || (phone != "" && l.Phone == phone) {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) Create(_ context.Context, l Lead) (Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(l.Email, l.Phone) >= 0 {
		return Lead{}, ErrDuplicate
	}
	l.ID = uuid.NewString()
	m.leads = append(m.leads, l)
	return l, nil
}

func (m *MemoryStore) Touch(_ context.Context, id string, l Lead) (Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.leads {
		if m.leads[i].ID != id {
			continue
		}
		cur := &m.leads[i]
		cur.Name = l.Name
		cur.Email = l.Email
		cur.Phone = l.Phone
		cur.City = l.City
		cur.PropertyTitle = l.PropertyTitle
		cur.LastContactAt = l.LastContactAt
		return *cur, nil
	}
	return Lead{}, ErrNotFound
}

// Len reports the number of stored leads.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leads)
}
