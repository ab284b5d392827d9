package execution

// Scope is the layered variable environment a traversal reads and writes.
// Loop iterations push a child layer so the item and index variables shadow
// the parent without clobbering it; everything else writes to the local layer.
type Scope struct {
	parent *Scope
	values map[string]any
}

// NewScope creates a root scope seeded with the given values.
func NewScope(seed map[string]any) *Scope {
	values := make(map[string]any, len(seed))
	for key, value := range seed {
		values[key] = value
	}

	return &Scope{values: values}
}

// Child creates a scope layered on top of s.
func (s *Scope) Child() *Scope {
	return &Scope{parent: s, values: make(map[string]any)}
}

// Get resolves a variable, walking up through parent layers.
func (s *Scope) Get(key string) (any, bool) {
	for current := s; current != nil; current = current.parent {
		if value, exists := current.values[key]; exists {
			return value, true
		}
	}

	return nil, false
}

// Set writes a variable into the local layer. Inside a loop body this keeps
// writes iteration-local; cross-iteration results flow through the loop's
// result key instead.
func (s *Scope) Set(key string, value any) {
	s.values[key] = value
}

// Snapshot flattens the scope chain into a single map, inner layers winning.
// The result is what expressions and templates evaluate against, and what
// suspension records persist.
func (s *Scope) Snapshot() map[string]any {
	var layers []*Scope
	for current := s; current != nil; current = current.parent {
		layers = append(layers, current)
	}

	flat := make(map[string]any)

	for i := len(layers) - 1; i >= 0; i-- {
		for key, value := range layers[i].values {
			flat[key] = value
		}
	}

	return flat
}
