package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Provider is a generative text backend.
type Provider interface {
	Complete(ctx context.Context, model string, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (string, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, model, systemPrompt, prompt string) (string, error)

func (f ProviderFunc) Complete(ctx context.Context, model string, prompt string) (string, error) {
	return f(ctx, model, "", prompt)
}

func (f ProviderFunc) CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (string, error) {
	return f(ctx, model, systemPrompt, prompt)
}

var ErrUnknownProvider = errors.New("unknown ai provider")

// Registry maps provider names ("openai", "ollama") to backends.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	fallback  string
}

// NewRegistry returns a registry whose Resolve("") answers with fallback.
func NewRegistry(fallback string) *Registry {
	return &Registry{providers: make(map[string]Provider), fallback: fallback}
}

func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

func (r *Registry) Resolve(name string) (Provider, error) {
	if name == "" {
		name = r.fallback
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for n := range r.providers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
