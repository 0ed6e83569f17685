package providers

import "fmt"

// Registry holds the set of LLM providers configured for this gateway,
// keyed by provider name (e.g. "anthropic", "openai", "openrouter").
// Skills that need a specific provider's credentials — create_image chief
// among them — resolve it here rather than holding a direct reference.
type Registry struct {
	providers map[string]Provider
	fallback  string
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces the provider under its own Name().
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// SetFallback names the provider returned by Default when no specific
// provider was requested or configured.
func (r *Registry) SetFallback(name string) {
	r.fallback = name
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", name)
	}
	return p, nil
}

// Default returns the fallback provider, or an error if none was set or it
// isn't registered.
func (r *Registry) Default() (Provider, error) {
	if r.fallback == "" {
		return nil, fmt.Errorf("no default provider configured")
	}
	return r.Get(r.fallback)
}

// Names lists the registered provider names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
