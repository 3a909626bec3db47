// Package account augments a schema-checked entry with generators
// (functions that compute attribute values from other attributes) and
// services (named bundles requiring a set of attributes, some
// generated). It resolves generator dependencies topologically and
// produces values in order.
package account

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/errwrap"
	"github.com/hashicorp/go-multierror"

	"github.com/smarzola/ldaptoolkit/internal/entry"
	"github.com/smarzola/ldaptoolkit/internal/schemaentry"
)

var (
	ErrNoGenerator               = errors.New("no generator registered for attribute")
	ErrNoService                 = errors.New("no such service")
	ErrServiceDepUnsatisfiable   = errors.New("service dependency unsatisfiable")
	ErrGeneratorDepUnsatisfiable = errors.New("generator dependency unsatisfiable")
	ErrCannotSortDependencies    = errors.New("cannot sort generator dependencies")
	ErrGenerationFailed          = errors.New("generation failed")
	ErrMissingRequired           = errors.New("missing required attribute")
	ErrGeneratorError            = errors.New("generator error")
)

// Generator computes the values of one attribute from others already on
// the entry.
type Generator struct {
	Name     string
	Produces string
	Required []string
	Fn       func(entry.Attributed) ([]string, error)
}

// StaticAttr is a fixed (attr, values) pair applied by a service before
// generation runs.
type StaticAttr struct {
	Attr   string
	Values []string
}

// Service is a named bundle of static attributes, generators to run, and
// other services it depends on.
type Service struct {
	Name     string
	Static   []StaticAttr
	Generate []string // attribute names to produce; resolved to generators by Produces, not Name
	Depends  []string
}

// Registry holds named generators and services.
type Registry struct {
	generators map[string]Generator
	services   map[string]Service
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{generators: make(map[string]Generator), services: make(map[string]Service)}
}

// AddGenerator registers a generator by name.
func (r *Registry) AddGenerator(g Generator) {
	r.generators[g.Name] = g
}

// AddService registers a service by name.
func (r *Registry) AddService(s Service) {
	r.services[s.Name] = s
}

// Service looks up a registered service.
func (r *Registry) Service(name string) (Service, bool) {
	s, ok := r.services[name]
	return s, ok
}

func (r *Registry) generatorForAttr(attr string) (Generator, bool) {
	for _, g := range r.generators {
		if g.Produces == attr {
			return g, true
		}
	}
	return Generator{}, false
}

// Entry wraps a schema-checked entry with a generator/service registry
// and the set of attributes currently pending generation.
type Entry struct {
	*schemaentry.Entry
	registry *Registry
	pending  map[string]bool
	services []string // names, in the order added
}

// FromSchemaEntry binds se to reg.
func FromSchemaEntry(se *schemaentry.Entry, reg *Registry) *Entry {
	return &Entry{Entry: se, registry: reg, pending: make(map[string]bool)}
}

// AddGenerate marks attr as to-be-generated. It must be produced by some
// registered generator.
func (a *Entry) AddGenerate(attr string) error {
	if _, ok := a.registry.generatorForAttr(attr); !ok {
		return fmt.Errorf("%w: %s", ErrNoGenerator, attr)
	}
	a.pending[attr] = true
	return nil
}

// AddService enqueues a service: its dependencies must already be
// registered, and every attribute it generates must have a registered
// generator whose required set is reachable (already present, or
// produced by another generator in the pending set). Static attributes
// are applied immediately as REPLACE operations.
func (a *Entry) AddService(name string) error {
	svc, ok := a.registry.Service(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoService, name)
	}

	for _, dep := range svc.Depends {
		if _, ok := a.registry.Service(dep); !ok {
			return fmt.Errorf("%w: service %q depends on unregistered service %q", ErrServiceDepUnsatisfiable, name, dep)
		}
	}

	willBePending := make(map[string]bool, len(a.pending)+len(svc.Generate))
	for attr := range a.pending {
		willBePending[attr] = true
	}
	for _, attr := range svc.Generate {
		willBePending[attr] = true
	}

	for _, attr := range svc.Generate {
		gen, ok := a.registry.generatorForAttr(attr)
		if !ok {
			return fmt.Errorf("%w: service %q attribute %q has no registered generator", ErrGeneratorDepUnsatisfiable, name, attr)
		}
		for _, req := range gen.Required {
			if a.Entry.Exists(req) || willBePending[req] {
				continue
			}
			return fmt.Errorf("%w: service %q attribute %q requires %q, which is neither present nor pending", ErrGeneratorDepUnsatisfiable, name, attr, req)
		}
	}

	for _, st := range svc.Static {
		if err := a.Entry.Replace(st.Attr, st.Values); err != nil {
			return err
		}
	}
	for _, attr := range svc.Generate {
		a.pending[attr] = true
	}
	a.services = append(a.services, name)
	return nil
}

// AdaptService returns a copy of svc whose static attributes and
// generate attributes exclude those already present on the entry, so
// adding it to an already-populated entry never clobbers existing
// values.
func (a *Entry) AdaptService(svc Service) Service {
	out := Service{Name: svc.Name, Depends: svc.Depends}
	for _, st := range svc.Static {
		if !a.Entry.Exists(st.Attr) {
			out.Static = append(out.Static, st)
		}
	}
	for _, attr := range svc.Generate {
		if !a.Entry.Exists(attr) {
			out.Generate = append(out.Generate, attr)
		}
	}
	return out
}

// Generate topologically sorts the pending generated attributes by
// generator-required dependency and runs each generator in order,
// replacing the attribute's values with what it returns.
func (a *Entry) Generate() error {
	order, err := a.sortPending()
	if err != nil {
		return err
	}

	for _, attr := range order {
		gen, _ := a.registry.generatorForAttr(attr)

		var missing *multierror.Error
		for _, req := range gen.Required {
			if len(a.Entry.GetValue(req)) == 0 {
				missing = multierror.Append(missing, fmt.Errorf("%w: %s", ErrMissingRequired, req))
			}
		}
		if missing.ErrorOrNil() != nil {
			return errwrap.Wrapf(fmt.Sprintf("generating %s: {{err}}", attr), fmt.Errorf("%w: %w", ErrGenerationFailed, missing))
		}

		values, err := gen.Fn(a.Entry)
		if err != nil {
			wrapped := errwrap.Wrapf("generator error: {{err}}", fmt.Errorf("%w: %v", ErrGeneratorError, err))
			return errwrap.Wrapf(fmt.Sprintf("generating %s: {{err}}", attr), fmt.Errorf("%w: %w", ErrGenerationFailed, wrapped))
		}

		if err := a.Entry.Replace(attr, values); err != nil {
			return err
		}
	}
	delete2(a.pending, order)
	return nil
}

func delete2(pending map[string]bool, done []string) {
	for _, attr := range done {
		delete(pending, attr)
	}
}

// sortPending builds the dependency graph over the pending generated
// attributes (edge req -> attr iff attr's generator requires req, req is
// itself pending, and req is not attr itself: a generator that reads its
// own attribute's current value, such as one hashing userPassword in
// place, depends on nothing pending) and returns a topological order via Kahn's
// algorithm. A cycle returns ErrCannotSortDependencies carrying the
// attributes that could not be ordered.
func (a *Entry) sortPending() ([]string, error) {
	nodes := make([]string, 0, len(a.pending))
	for attr := range a.pending {
		nodes = append(nodes, attr)
	}
	sort.Strings(nodes) // deterministic order among independent nodes

	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, attr := range nodes {
		inDegree[attr] = 0
	}
	for _, attr := range nodes {
		gen, _ := a.registry.generatorForAttr(attr)
		for _, req := range gen.Required {
			if req == attr {
				continue
			}
			if _, pending := inDegree[req]; pending {
				inDegree[attr]++
				dependents[req] = append(dependents[req], attr)
			}
		}
	}

	var queue []string
	for _, attr := range nodes {
		if inDegree[attr] == 0 {
			queue = append(queue, attr)
		}
	}
	sort.Strings(queue)

	var order []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)

		next := append([]string(nil), dependents[n]...)
		sort.Strings(next)
		for _, dep := range next {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(nodes) {
		remaining := make([]string, 0, len(nodes)-len(order))
		placed := make(map[string]bool, len(order))
		for _, n := range order {
			placed[n] = true
		}
		for _, n := range nodes {
			if !placed[n] {
				remaining = append(remaining, n)
			}
		}
		sort.Strings(remaining)
		return nil, fmt.Errorf("%w: %v", ErrCannotSortDependencies, remaining)
	}
	return order, nil
}
