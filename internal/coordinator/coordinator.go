// Package coordinator multiplexes several attached stores behind one API.
// Writes route to the single store holding the entity's history; reads fan
// out to every store and are merged before sorting and paging apply.
package coordinator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mesh-health/careledger/internal/logger"
	"github.com/mesh-health/careledger/pkg/types"
)

// Coordinator fronts an ordered list of stores. The first registered store is
// the default target for entities no store holds yet.
type Coordinator struct {
	mu     sync.RWMutex
	stores []types.Store
	log    *logger.Logger
}

// New returns a coordinator with no stores registered.
func New() *Coordinator {
	return &Coordinator{log: logger.Nop()}
}

// SetLogger replaces the coordinator's logger.
func (c *Coordinator) SetLogger(l *logger.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = l
}

// Register appends a store. Stores must be attached by the caller.
func (c *Coordinator) Register(s types.Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores = append(c.stores, s)
}

// Stores returns the registered stores in registration order.
func (c *Coordinator) Stores() []types.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.Store, len(c.stores))
	copy(out, c.stores)
	return out
}

// holder finds the store carrying history for the id. It returns nil when no
// store holds it and ErrAmbiguousRoute when more than one does.
func (c *Coordinator) holder(kind types.EntityKind, id string) (types.Store, error) {
	var found types.Store
	for _, s := range c.stores {
		if !s.Holds(kind, id) {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%s %q: %w", kind, id, types.ErrAmbiguousRoute)
		}
		found = s
	}
	return found, nil
}

// routeBatch resolves the single store a write batch targets. Every entity
// must resolve to the same store; entities held nowhere fall back to def.
func (c *Coordinator) routeBatch(entities []types.Entity, def types.Store) (types.Store, error) {
	var target types.Store
	for _, e := range entities {
		kind := e.Kind()
		if kind == "" {
			return nil, types.ErrInvalidData
		}
		s, err := c.holder(kind, e.Versioned().LogicalID())
		if err != nil {
			return nil, err
		}
		if s == nil {
			s = def
		}
		if target == nil {
			target = s
			continue
		}
		if s != nil && s != target {
			return nil, fmt.Errorf("batch spans stores: %w", types.ErrAmbiguousRoute)
		}
	}
	return target, nil
}

// Add routes new entities to the store already holding their history, or to
// the first registered store for brand-new identifiers.
func (c *Coordinator) Add(entities []types.Entity) ([]types.Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.stores) == 0 {
		return nil, types.ErrStoreDetached
	}
	target, err := c.routeBatch(entities, c.stores[0])
	if err != nil {
		return nil, err
	}
	return target.Add(entities)
}

// Update routes version appends to the holding store. Entities held nowhere
// fail with ErrNotFound.
func (c *Coordinator) Update(entities []types.Entity) ([]types.Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	target, err := c.routeBatch(entities, nil)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, types.ErrNotFound
	}
	return target.Update(entities)
}

// Delete routes tombstones to the holding store.
func (c *Coordinator) Delete(entities []types.Entity) ([]types.Entity, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	target, err := c.routeBatch(entities, nil)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, types.ErrNotFound
	}
	return target.Delete(entities)
}

// unpaged strips paging so each store returns its full result set; sorting
// and paging apply once after the merge.
func unpaged(q types.Query) types.Query {
	q.Limit = 0
	q.Offset = 0
	return q
}

// FetchTasks fans the query out to every store and merges the results.
func (c *Coordinator) FetchTasks(q types.Query) ([]types.Task, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	merged := []types.Task{}
	for _, s := range c.stores {
		part, err := s.FetchTasks(unpaged(q))
		if err != nil {
			return nil, err
		}
		merged = append(merged, part...)
	}
	return types.SortAndPageTasks(q, merged), nil
}

// FetchCarePlans fans the query out to every store and merges the results.
func (c *Coordinator) FetchCarePlans(q types.Query) ([]types.CarePlan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	merged := []types.CarePlan{}
	for _, s := range c.stores {
		part, err := s.FetchCarePlans(unpaged(q))
		if err != nil {
			return nil, err
		}
		merged = append(merged, part...)
	}
	return types.SortAndPageCarePlans(q, merged), nil
}

// FetchPatients fans the query out to every store and merges the results.
func (c *Coordinator) FetchPatients(q types.Query) ([]types.Patient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	merged := []types.Patient{}
	for _, s := range c.stores {
		part, err := s.FetchPatients(unpaged(q))
		if err != nil {
			return nil, err
		}
		merged = append(merged, part...)
	}
	return types.SortAndPagePatients(q, merged), nil
}

// FetchContacts fans the query out to every store and merges the results.
func (c *Coordinator) FetchContacts(q types.Query) ([]types.Contact, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	merged := []types.Contact{}
	for _, s := range c.stores {
		part, err := s.FetchContacts(unpaged(q))
		if err != nil {
			return nil, err
		}
		merged = append(merged, part...)
	}
	return types.SortAndPageContacts(q, merged), nil
}

// FetchOutcomes fans the query out to every store and merges the results.
func (c *Coordinator) FetchOutcomes(q types.Query) ([]types.Outcome, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	merged := []types.Outcome{}
	for _, s := range c.stores {
		part, err := s.FetchOutcomes(unpaged(q))
		if err != nil {
			return nil, err
		}
		merged = append(merged, part...)
	}
	return types.SortAndPageOutcomes(q, merged), nil
}

// FetchEvents fans the query out to every store and re-sorts the merged
// stream by occurrence start, then task id.
func (c *Coordinator) FetchEvents(q types.EventQuery) ([]types.Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	merged := []types.Event{}
	for _, s := range c.stores {
		part, err := s.FetchEvents(q)
		if err != nil {
			return nil, err
		}
		merged = append(merged, part...)
	}
	sort.SliceStable(merged, func(a, b int) bool {
		if !merged[a].Occurrence.Start.Equal(merged[b].Occurrence.Start) {
			return merged[a].Occurrence.Start.Before(merged[b].Occurrence.Start)
		}
		return merged[a].Task.ID < merged[b].Task.ID
	})
	return merged, nil
}

// FetchAnyTask returns the newest current version of the task across all
// stores, comparing effective dates.
func (c *Coordinator) FetchAnyTask(id string) (types.Task, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var (
		best  types.Task
		found bool
	)
	for _, s := range c.stores {
		tasks, err := s.FetchTasks(types.Query{IDs: []string{id}})
		if err != nil {
			return types.Task{}, err
		}
		for _, task := range tasks {
			if !found || task.EffectiveDate.After(best.EffectiveDate) {
				best = task
				found = true
			}
		}
	}
	if !found {
		return types.Task{}, fmt.Errorf("fetch task %q: %w", id, types.ErrNotFound)
	}
	return best, nil
}
