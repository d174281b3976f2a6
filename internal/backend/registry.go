// ABOUTME: Thread-safe registry of configured LLM backends for chaz
// ABOUTME: Resolves model selectors and accepts ad-hoc backend registrations

package backend

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/2389/chaz/internal/config"
)

// Registry holds the set of configured backends. It is read-only at
// runtime except that the backend command may append ad-hoc OpenAI
// backends; reads from many rooms run concurrently with those writes.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	backends map[string]*Backend
	logger   *slog.Logger
}

// NewRegistry builds a registry from the configured backend list.
func NewRegistry(cfgs []config.BackendConfig, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		backends: make(map[string]*Backend),
		logger:   logger.With("component", "backends"),
	}

	for _, bc := range cfgs {
		var b *Backend
		switch bc.Type {
		case config.BackendTypeOpenAI:
			b = &Backend{
				ID:      bc.Name,
				Kind:    KindOpenAI,
				Models:  bc.Models,
				invoker: NewOpenAI(bc.APIBase, bc.APIKey),
			}
		case config.BackendTypeAdapter:
			b = &Backend{
				ID:      bc.Name,
				Kind:    KindAdapter,
				Models:  bc.Models,
				invoker: NewAdapter(bc.Command),
			}
		default:
			return nil, fmt.Errorf("backend %q: unknown type %q", bc.Name, bc.Type)
		}
		if _, exists := r.backends[bc.Name]; exists {
			return nil, fmt.Errorf("backend %q: %w", bc.Name, ErrBackendExists)
		}
		r.backends[bc.Name] = b
		r.order = append(r.order, bc.Name)
	}

	return r, nil
}

// Add registers a backend. Returns ErrBackendExists on a name collision
// without mutating anything.
func (r *Registry) Add(b *Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[b.ID]; exists {
		return fmt.Errorf("backend %q: %w", b.ID, ErrBackendExists)
	}
	r.backends[b.ID] = b
	r.order = append(r.order, b.ID)
	return nil
}

// AddOpenAI registers an ad-hoc OpenAI-compatible backend for the
// lifetime of the process.
func (r *Registry) AddOpenAI(name, apiBase, apiKey string) error {
	if err := r.Add(New(name, KindOpenAI, nil, NewOpenAI(apiBase, apiKey))); err != nil {
		return err
	}
	r.logger.Info("ad-hoc backend registered", "name", name, "api_base", apiBase)
	return nil
}

// Get returns the backend with the given ID, or nil.
func (r *Registry) Get(id string) *Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.backends[id]
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

// Resolve maps a model selector to a concrete (backend, model) pair.
//
// A selector is either "backend:model" or a bare model name. Bare names
// are only valid when exactly one backend is configured; with multiple
// backends they are rejected as ambiguous even if a single backend
// happens to list the model. Resolution never mutates the registry.
func (r *Registry) Resolve(selector string) (Selection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.backends) == 0 {
		return Selection{}, ErrNoBackends
	}

	if len(r.backends) == 1 {
		b := r.backends[r.order[0]]
		// Try the bare form first: adapter model ids may themselves
		// contain colons (e.g. ollama:llama3).
		if b.HasModel(selector) {
			return Selection{Backend: b, Model: selector}, nil
		}
		if name, model, ok := strings.Cut(selector, ":"); ok && name == b.ID {
			if sel, err := r.resolveOn(b, model); err == nil {
				return sel, nil
			}
		}
		if len(b.Models) == 0 {
			// Ad-hoc backends carry no model list; trust the caller.
			return Selection{Backend: b, Model: selector}, nil
		}
		return Selection{}, fmt.Errorf("%w: %q", ErrUnknownModel, selector)
	}

	name, model, ok := strings.Cut(selector, ":")
	if !ok {
		return Selection{}, fmt.Errorf("%w (got %q)", ErrAmbiguousModel, selector)
	}
	b := r.backends[name]
	if b == nil {
		return Selection{}, fmt.Errorf("%w: no backend named %q", ErrUnknownModel, name)
	}
	sel, err := r.resolveOn(b, model)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %q on backend %q", ErrUnknownModel, model, name)
	}
	return sel, nil
}

// resolveOn validates a model against one backend. Backends with no
// known model list (ad-hoc registrations) accept any model name.
func (r *Registry) resolveOn(b *Backend, model string) (Selection, error) {
	if model == "" {
		return Selection{}, ErrUnknownModel
	}
	if len(b.Models) == 0 || b.HasModel(model) {
		return Selection{Backend: b, Model: model}, nil
	}
	return Selection{}, ErrUnknownModel
}

// Default returns the first backend's first known model. Used when a
// room has not selected a model yet.
func (r *Registry) Default() (Selection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.backends) == 0 {
		return Selection{}, ErrNoBackends
	}
	b := r.backends[r.order[0]]
	if len(b.Models) == 0 {
		return Selection{}, fmt.Errorf("%w: backend %q lists no models", ErrUnknownModel, b.ID)
	}
	return Selection{Backend: b, Model: b.Models[0]}, nil
}

// ListModels enumerates all known models across all backends, in
// registration order. With more than one backend each model is prefixed
// by its backend name; with a single backend names are bare.
func (r *Registry) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefixed := len(r.backends) > 1
	var models []string
	for _, id := range r.order {
		b := r.backends[id]
		for _, m := range b.Models {
			if prefixed {
				models = append(models, b.ID+":"+m)
			} else {
				models = append(models, m)
			}
		}
	}
	return models
}

// DisplayName renders a selection the way users type selectors: bare
// with a single backend, backend-prefixed otherwise.
func (r *Registry) DisplayName(sel Selection) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.backends) > 1 {
		return sel.Backend.ID + ":" + sel.Model
	}
	return sel.Model
}
