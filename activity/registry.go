package activity

import (
	"fmt"
	"sort"
	"sync"
)

// Registry stores activity records by id. Records handed out are copies.
type Registry struct {
	records map[string]*Record
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Record),
	}
}

// Insert stores a new record.
func (r *Registry) Insert(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[rec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	stored := rec.clone()
	r.records[rec.ID] = &stored
	return nil
}

// Get returns a copy of the record for id.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Update applies fn to the stored record for id while holding the write lock.
// If fn returns an error the record is left unchanged and the error is returned.
// On success the updated record is returned.
func (r *Registry) Update(id string, fn func(rec *Record) error) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	working := rec.clone()
	if err := fn(&working); err != nil {
		return rec.clone(), err
	}
	*rec = working
	return working.clone(), nil
}

// List returns a copy of every record, ordered by id.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out
}

// Len returns the number of stored records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// idLess orders act_9999 before act_10000.
func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
