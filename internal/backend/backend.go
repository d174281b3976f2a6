// ABOUTME: Backend value type and the Invoker contract for LLM access points
// ABOUTME: Closed set of backend kinds: direct OpenAI-compatible HTTP or adapter process

package backend

import (
	"context"
	"errors"

	"github.com/2389/chaz/internal/prompt"
)

// Backend errors
var (
	// ErrBackendExists indicates a name collision with a configured
	// or previously added backend.
	ErrBackendExists = errors.New("backend already exists")

	// ErrNoBackends indicates the registry holds no backends at all.
	ErrNoBackends = errors.New("no backends configured")

	// ErrUnknownModel indicates a selector that does not resolve to a
	// known (backend, model) pair.
	ErrUnknownModel = errors.New("unknown model")

	// ErrAmbiguousModel indicates a bare model name was given while more
	// than one backend is configured.
	ErrAmbiguousModel = errors.New("ambiguous model: prefix it with a backend name, e.g. openai:gpt-4o")
)

// Kind identifies how a backend is invoked.
type Kind string

// Backend kinds
const (
	KindOpenAI  Kind = "openai"
	KindAdapter Kind = "adapter"
)

// Invoker executes a completion request against one backend.
// Implementations must honor context cancellation; a timeout surfaces
// as an ordinary invocation error.
type Invoker interface {
	Invoke(ctx context.Context, model string, p *prompt.Prompt) (string, error)
}

// Backend is a configured LLM access point. Immutable after construction.
type Backend struct {
	ID      string
	Kind    Kind
	Models  []string // known models, in configured order
	invoker Invoker
}

// New constructs a backend with an explicit invoker. Callers that stub
// the invocation layer use this; production backends come from the
// registry's config loading and AddOpenAI.
func New(id string, kind Kind, models []string, inv Invoker) *Backend {
	return &Backend{ID: id, Kind: kind, Models: models, invoker: inv}
}

// Invoke runs a completion request against this backend.
func (b *Backend) Invoke(ctx context.Context, model string, p *prompt.Prompt) (string, error) {
	return b.invoker.Invoke(ctx, model, p)
}

// HasModel reports whether the model is in this backend's known list.
func (b *Backend) HasModel(model string) bool {
	for _, m := range b.Models {
		if m == model {
			return true
		}
	}
	return false
}

// Selection is a resolved (backend, model) pair.
type Selection struct {
	Backend *Backend
	Model   string
}
