package storage

import (
	"sort"
	"sync"

	"KoordeDHT/internal/domain"
	"KoordeDHT/internal/logger"
)

// Storage is an in-memory key-value shard. A node holds two independent
// instances: one for keys it owns (primary_store) and one for keys it
// holds on behalf of a predecessor (replica_store).
type Storage struct {
	lgr  logger.Logger
	mu   sync.RWMutex
	data map[string]domain.Resource
}

// NewMemoryStorage creates an empty shard.
func NewMemoryStorage(lgr logger.Logger) *Storage {
	if lgr == nil {
		lgr = &logger.NopLogger{}
	}
	return &Storage{lgr: lgr, data: make(map[string]domain.Resource)}
}

// Put inserts or overwrites a resource, indexed by its hashed key.
func (s *Storage) Put(resource domain.Resource) {
	key := resource.Key.String()
	s.mu.Lock()
	_, existed := s.data[key]
	s.data[key] = resource
	s.mu.Unlock()
	if existed {
		s.lgr.Debug("resource updated", logger.FResource("resource", resource))
	} else {
		s.lgr.Debug("resource inserted", logger.FResource("resource", resource))
	}
}

// Get retrieves the resource stored under id, or domain.ErrResourceNotFound.
func (s *Storage) Get(id domain.ID) (domain.Resource, error) {
	key := id.String()
	s.mu.RLock()
	res, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return domain.Resource{}, domain.ErrResourceNotFound
	}
	return res, nil
}

// Delete removes the resource stored under id, or domain.ErrResourceNotFound.
func (s *Storage) Delete(id domain.ID) error {
	key := id.String()
	s.mu.Lock()
	_, ok := s.data[key]
	if ok {
		delete(s.data, key)
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrResourceNotFound
	}
	s.lgr.Debug("resource deleted", logger.F("key", key))
	return nil
}

// Between returns every resource whose key falls in the circular
// half-open interval (from, to]. The node's Leave transfers the whole
// shard via All and does not call Between.
func (s *Storage) Between(space *domain.Space, from, to domain.ID) []domain.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Resource
	for _, res := range s.data {
		if space.InRange(res.Key, from, to, true) {
			result = append(result, res)
		}
	}
	return result
}

// All returns a snapshot of every resource currently held.
func (s *Storage) All() []domain.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Resource, 0, len(s.data))
	for _, res := range s.data {
		out = append(out, res)
	}
	return out
}

// DebugLog emits a single structured snapshot of the shard's contents.
func (s *Storage) DebugLog(label string) {
	snapshot := s.All()
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Key.String() < snapshot[j].Key.String() })
	entries := make([]map[string]any, 0, len(snapshot))
	for _, res := range snapshot {
		entries = append(entries, map[string]any{"key": res.RawKey, "id": res.Key.String(), "value": res.Value})
	}
	s.lgr.Debug(label+" snapshot", logger.F("count", len(snapshot)), logger.F("resources", entries))
}
