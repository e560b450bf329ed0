// Package registry resolves model names to embedding providers.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Aleph-Alpha/embedding-pipeline/v1/embedding"
)

var (
	ErrNoDefault      = errors.New("registry: default model is not registered")
	ErrDuplicateModel = errors.New("registry: duplicate model name")
)

// Registry is an immutable set of named providers with a default. It is safe
// for concurrent use without locking.
type Registry struct {
	byName      map[string]embedding.Provider
	canonical   map[string]string
	names       []string
	defaultName string
}

// Entry binds a provider to additional alias names.
type Entry struct {
	Provider embedding.Provider
	Aliases  []string
}

// New builds a registry. Canonical names come from Provider.Name(). Every
// name and alias must be unique and defaultName must be one of them.
func New(defaultName string, entries ...Entry) (*Registry, error) {
	r := &Registry{
		byName:    make(map[string]embedding.Provider),
		canonical: make(map[string]string),
	}

	for _, e := range entries {
		name := e.Provider.Name()
		keys := append([]string{name}, e.Aliases...)
		for _, k := range keys {
			if _, dup := r.byName[k]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateModel, k)
			}
			r.byName[k] = e.Provider
			r.canonical[k] = name
		}
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	canonical, ok := r.canonical[defaultName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoDefault, defaultName)
	}
	r.defaultName = canonical
	return r, nil
}

// FromConfigs builds guarded providers for every config and a registry over them.
func FromConfigs(defaultName string, cfgs []embedding.Config, opts ...embedding.Option) (*Registry, error) {
	entries := make([]Entry, 0, len(cfgs))
	for _, cfg := range cfgs {
		p, err := embedding.New(cfg, opts...)
		if err != nil {
			return nil, fmt.Errorf("registry: model %s: %w", cfg.Name, err)
		}
		entries = append(entries, Entry{Provider: p, Aliases: cfg.Aliases})
	}
	return New(defaultName, entries...)
}

// Resolve returns the provider for name and the canonical name actually used.
// Empty or unknown names resolve to the default.
func (r *Registry) Resolve(name string) (embedding.Provider, string) {
	if p, ok := r.byName[name]; ok {
		return p, r.canonical[name]
	}
	return r.byName[r.defaultName], r.defaultName
}

// HasModel reports whether name is a registered name or alias.
func (r *Registry) HasModel(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// ListAvailable returns the canonical model names, sorted.
func (r *Registry) ListAvailable() []string {
	return append([]string(nil), r.names...)
}

// Default returns the canonical name of the default model.
func (r *Registry) Default() string { return r.defaultName }

// ModelInfo describes a registered model.
type ModelInfo struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Default   bool   `json:"default"`
}

// Describe lists every model with its dimension, sorted by name.
func (r *Registry) Describe() []ModelInfo {
	out := make([]ModelInfo, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, ModelInfo{
			Name:      n,
			Dimension: r.byName[n].Dimension(),
			Default:   n == r.defaultName,
		})
	}
	return out
}
