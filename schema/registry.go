package schema

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/signadot/tony-format/contentstore/xpath"
)

// Registry is an in-memory Provider of types keyed by id and name.
type Registry struct {
	mu     sync.RWMutex
	byID   map[int64]*Type
	byName map[string]*Type
}

func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[int64]*Type),
		byName: make(map[string]*Type),
	}
}

// Register finalizes and registers a type.
func (r *Registry) Register(t *Type) error {
	if t == nil {
		return fmt.Errorf("cannot register nil type")
	}
	if t.ID <= 0 {
		return fmt.Errorf("type %q must have a positive id", t.Name)
	}
	if err := t.Finalize(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[t.ID]; exists {
		return fmt.Errorf("type id %d already registered", t.ID)
	}
	if _, exists := r.byName[t.Name]; exists {
		return fmt.Errorf("type %q already registered", t.Name)
	}
	r.byID[t.ID] = t
	r.byName[t.Name] = t
	return nil
}

// AssignmentTree implements Provider.
func (r *Registry) AssignmentTree(_ context.Context, typeID int64) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[typeID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownType, typeID)
	}
	return t, nil
}

// ByName looks up a type by case-insensitive name.
func (r *Registry) ByName(name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[xpath.NormalizeAlias(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// All returns all registered types ordered by id.
func (r *Registry) All() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Type, 0, len(r.byID))
	for _, t := range r.byID {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
