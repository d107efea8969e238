// Package schema generates JSON Schemas from Go request types. The same reflector
// serves the HTTP schema endpoint and the structured output of the intake agent.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"
)

var decimalType = reflect.TypeOf(decimal.Decimal{})

// NewReflector returns a reflector that inlines every definition, forbids unknown
// properties and renders decimal amounts as strings.
func NewReflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t == decimalType {
				return &jsonschema.Schema{
					Type:        "string",
					Pattern:     `^-?[0-9]+(\.[0-9]+)?$`,
					Description: "Decimal amount, e.g. \"150.00\"",
				}
			}
			return nil
		},
	}
}

// Reflect builds the schema of v's type.
func Reflect(v any) *jsonschema.Schema {
	return NewReflector().Reflect(v)
}

// AsMap returns the schema of v as a generic map, the shape API clients expect.
func AsMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return m, nil
}

// Registry maps public names to request types.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	cache   map[string]*jsonschema.Schema
}

type entry struct {
	description string
	sample      any
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}, cache: map[string]*jsonschema.Schema{}}
}

// Register adds sample's type under name. A later registration replaces an earlier one.
func (r *Registry) Register(name, description string, sample any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry{description: description, sample: sample}
	delete(r.cache, name)
}

// Get returns the schema registered under name.
func (r *Registry) Get(name string) (*jsonschema.Schema, bool) {
	r.mu.RLock()
	s, ok := r.cache[name]
	e, known := r.entries[name]
	r.mu.RUnlock()
	if ok {
		return s, true
	}
	if !known {
		return nil, false
	}

	s = Reflect(e.sample)
	if s.Description == "" {
		s.Description = e.description
	}
	r.mu.Lock()
	r.cache[name] = s
	r.mu.Unlock()
	return s, true
}

// Names lists the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
