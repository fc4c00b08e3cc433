// Package registry maps names to constructors so strategies and reward
// providers can be selected at runtime by string key.
//
// A Registry is an ordinary value: build it once during startup and pass it
// to whatever needs to resolve names. There is no process-wide state and no
// removal operation. Registration is not synchronized; lookups are safe for
// concurrent use once registration is finished.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

var (
	// ErrNameConflict is wrapped by errors returned for duplicate registration.
	ErrNameConflict = errors.New("name already registered")

	// ErrNameNotFound is wrapped by errors returned for unknown names.
	ErrNameNotFound = errors.New("name not defined")
)

// ErrConflict reports a duplicate registration.
type ErrConflict struct {
	Kind string
	Name string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("%s %q is already registered", e.Kind, e.Name)
}

func (e *ErrConflict) Unwrap() error { return ErrNameConflict }

// ErrNotFound reports a lookup of an unregistered name.
type ErrNotFound struct {
	Kind  string
	Name  string
	Known []string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q is not defined (known: %s)", e.Kind, e.Name, strings.Join(e.Known, ", "))
}

func (e *ErrNotFound) Unwrap() error { return ErrNameNotFound }

// Params is the keyword payload handed to a factory.
type Params map[string]any

// Factory builds a T from keyword parameters.
type Factory[T any] func(params Params) (T, error)

// Registry maps names to factories of T.
type Registry[T any] struct {
	kind      string
	factories map[string]Factory[T]
}

// New creates an empty registry. kind names the registered components in
// error messages (e.g. "search method").
func New[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:      kind,
		factories: make(map[string]Factory[T]),
	}
}

// Kind returns the component kind.
func (r *Registry[T]) Kind() string { return r.kind }

// Register adds a factory under name.
func (r *Registry[T]) Register(name string, f Factory[T]) error {
	if f == nil {
		return fmt.Errorf("registry: nil factory for %s %q", r.kind, name)
	}
	if _, ok := r.factories[name]; ok {
		return &ErrConflict{Kind: r.kind, Name: name}
	}
	r.factories[name] = f
	return nil
}

// MustRegister is like Register but panics on error.
// Intended for static startup tables.
func (r *Registry[T]) MustRegister(name string, f Factory[T]) *Registry[T] {
	if err := r.Register(name, f); err != nil {
		panic(err)
	}
	return r
}

// Get builds the component registered under name.
func (r *Registry[T]) Get(name string, params Params) (T, error) {
	f, ok := r.factories[name]
	if !ok {
		var zero T
		return zero, &ErrNotFound{Kind: r.kind, Name: name, Known: r.Names()}
	}
	v, err := f(params)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("build %s %q: %w", r.kind, name, err)
	}
	return v, nil
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry[T]) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Decode copies params into the struct pointed to by dst. Keys match
// `mapstructure` tags; strings are converted to numbers where needed so
// parameters read from YAML or the environment decode cleanly. Unknown keys
// are rejected.
func Decode(params Params, dst any) error {
	if len(params) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           dst,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(params)); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
