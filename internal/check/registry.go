package check

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDuplicateCheck is returned when a check id is registered twice.
	ErrDuplicateCheck = errors.New("duplicate check id")
	// ErrInvalidCheck is returned for checks missing required identity.
	ErrInvalidCheck = errors.New("invalid check")
)

// Registry holds checks in registration order, keyed by id.
type Registry struct {
	mu     sync.RWMutex
	checks []Check
	byID   map[string]Check
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Check)}
}

// Register adds c. Duplicate ids and malformed checks are rejected.
func (r *Registry) Register(c Check) error {
	if err := Validate(c); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[c.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCheck, c.ID())
	}
	r.checks = append(r.checks, c)
	r.byID[c.ID()] = c
	return nil
}

// Get looks up a check by id.
func (r *Registry) Get(id string) (Check, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// All returns every check in registration order.
func (r *Registry) All() []Check {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Check, len(r.checks))
	copy(out, r.checks)
	return out
}

// ByCategory returns the checks of one category in registration order.
func (r *Registry) ByCategory(category Category) []Check {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Check
	for _, c := range r.checks {
		if c.Category() == category {
			out = append(out, c)
		}
	}
	return out
}

// IDs returns every registered id in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, len(r.checks))
	for i, c := range r.checks {
		ids[i] = c.ID()
	}
	return ids
}

// Categories returns the categories that have at least one check, in
// AllCategories order.
func (r *Registry) Categories() []Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	present := make(map[Category]bool)
	for _, c := range r.checks {
		present[c.Category()] = true
	}
	var out []Category
	for _, c := range AllCategories {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of registered checks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.checks)
}

// Selection narrows the checks an executor runs. The zero value selects all.
type Selection struct {
	IDs        []string
	Categories []Category
	Exclude    []string
}

// IsZero reports whether s selects every check.
func (s Selection) IsZero() bool {
	return len(s.IDs) == 0 && len(s.Categories) == 0 && len(s.Exclude) == 0
}

// Select returns the checks matching sel in registration order, plus any
// requested ids that are not registered.
func (r *Registry) Select(sel Selection) (checks []Check, unknown []string) {
	ids := toSet(sel.IDs)
	cats := make(map[Category]bool, len(sel.Categories))
	for _, c := range sel.Categories {
		cats[c] = true
	}
	exclude := toSet(sel.Exclude)

	for id := range ids {
		if _, ok := r.Get(id); !ok {
			unknown = append(unknown, id)
		}
	}
	sort.Strings(unknown)

	for _, c := range r.All() {
		if len(ids) > 0 && !ids[c.ID()] {
			continue
		}
		if len(cats) > 0 && !cats[c.Category()] {
			continue
		}
		if exclude[c.ID()] {
			continue
		}
		checks = append(checks, c)
	}
	return checks, unknown
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
