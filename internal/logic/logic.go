// Package logic defines the pluggable entry/exit logic of trading systems
// and provides a Registry for resolving logic implementations by name.
package logic

import (
	"sort"

	"tradesys/internal/domain"
	"tradesys/internal/session"
)

// PreprocessFunc derives the feature columns a logic implementation reads.
type PreprocessFunc func(frame *domain.Frame) error

// Logic bundles one strategy's entry and exit functions with the
// preprocessing its feature columns need.
type Logic struct {
	// Name is the unique identifier for this logic.
	Name string

	// Entry produces an entry order, or nil when no signal fires.
	Entry session.EntryFunc

	// Exit produces an exit order against the held position, or nil.
	Exit session.ExitFunc

	// Preprocess derives feature columns before stepping begins. May be nil
	// for logic that reads raw prices only.
	Preprocess PreprocessFunc
}

// Registry holds a named collection of logic implementations for lookup and
// enumeration.
type Registry struct {
	logics map[string]Logic
}

// NewRegistry creates an empty logic Registry.
func NewRegistry() *Registry {
	return &Registry{
		logics: make(map[string]Logic),
	}
}

// Register adds a logic implementation to the registry, keyed by its Name.
func (r *Registry) Register(l Logic) {
	r.logics[l.Name] = l
}

// Get retrieves a logic implementation by name. The second return value
// indicates whether it was found.
func (r *Registry) Get(name string) (Logic, bool) {
	l, ok := r.logics[name]
	return l, ok
}

// List returns a sorted slice of all registered logic names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.logics))
	for name := range r.logics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
