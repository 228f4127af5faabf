package storage

import (
	"sync"

	"github.com/dogcoloringbooks/coloringbook/internal/models"
)

// SessionStore holds live sessions keyed by id.
type SessionStore[T any] struct {
	sessions map[string]T
	mu       sync.RWMutex
}

func NewSessionStore[T any]() *SessionStore[T] {
	return &SessionStore[T]{
		sessions: make(map[string]T),
	}
}

func (s *SessionStore[T]) Get(sessionID string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[sessionID]
	return session, exists
}

func (s *SessionStore[T]) Set(sessionID string, session T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = session
}

func (s *SessionStore[T]) GetAll() map[string]T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]T, len(s.sessions))
	for k, v := range s.sessions {
		result[k] = v
	}
	return result
}

func (s *SessionStore[T]) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Patch computes the next version of an item from the current one.
type Patch func(models.WorkItem) models.WorkItem

// ItemStore keeps work items keyed by id in insertion order.
// Items are stored and returned by value; mutation only happens through Update.
type ItemStore struct {
	items map[string]models.WorkItem
	order []string
	mu    sync.RWMutex
}

func NewItemStore() *ItemStore {
	return &ItemStore{
		items: make(map[string]models.WorkItem),
	}
}

// Add appends items. An item whose id already exists replaces the stored one
// in place.
func (s *ItemStore) Add(items ...models.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		if _, exists := s.items[item.ID]; !exists {
			s.order = append(s.order, item.ID)
		}
		s.items[item.ID] = item
	}
}

func (s *ItemStore) Get(id string) (models.WorkItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, exists := s.items[id]
	return item, exists
}

// Update applies patches to the item in order and stores the result.
func (s *ItemStore) Update(id string, patches ...Patch) (models.WorkItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, exists := s.items[id]
	if !exists {
		return models.WorkItem{}, false
	}
	for _, p := range patches {
		item = p(item)
	}
	s.items[id] = item
	return item, true
}

// UpdateIf applies patch only when cond holds for the current item.
func (s *ItemStore) UpdateIf(id string, cond func(models.WorkItem) bool, patch Patch) (models.WorkItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, exists := s.items[id]
	if !exists || !cond(item) {
		return item, false
	}
	item = patch(item)
	s.items[id] = item
	return item, true
}

func (s *ItemStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		return false
	}
	delete(s.items, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns a snapshot of all items in insertion order.
func (s *ItemStore) List() []models.WorkItem {
	return s.Select(nil)
}

// Select returns the items matching keep in insertion order. A nil keep
// matches everything.
func (s *ItemStore) Select(keep func(models.WorkItem) bool) []models.WorkItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.WorkItem, 0, len(s.order))
	for _, id := range s.order {
		item := s.items[id]
		if keep == nil || keep(item) {
			result = append(result, item)
		}
	}
	return result
}

func (s *ItemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
