package llm

import (
	"sync"
)

// Capability names the semantic roles a model chain can serve.
const (
	// CapabilityClassify covers intent classification of a user message.
	CapabilityClassify = "classify"
	// CapabilityConverse covers conversational replies and revisions.
	CapabilityConverse = "converse"
	// CapabilityPlan covers structured study-plan generation.
	CapabilityPlan = "plan"
)

// EndpointConfig defines an available model endpoint.
type EndpointConfig struct {
	// Provider is the model provider (openai, ollama, anthropic).
	Provider string `json:"provider"`

	// URL is the API base URL. Empty uses the provider default.
	URL string `json:"url,omitempty"`

	// Model is the actual model identifier to send to the provider.
	Model string `json:"model"`
}

// Registry maps capabilities to ordered model chains. The first model in a
// chain is the primary; the rest are tried in order when it fails.
type Registry struct {
	mu        sync.RWMutex
	chains    map[string][]string
	endpoints map[string]*EndpointConfig
}

// NewRegistry creates a registry from capability chains and endpoints.
func NewRegistry(chains map[string][]string, endpoints map[string]*EndpointConfig) *Registry {
	return &Registry{
		chains:    chains,
		endpoints: endpoints,
	}
}

// Chain returns the model chain for a capability, primary first.
// Unknown capabilities fall back to the converse chain.
func (r *Registry) Chain(capability string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if chain, ok := r.chains[capability]; ok && len(chain) > 0 {
		return chain
	}
	return r.chains[CapabilityConverse]
}

// Endpoint returns the endpoint configuration for a model name.
// Returns nil if the model is not configured.
func (r *Registry) Endpoint(modelName string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.endpoints[modelName]
}

// SetEndpoint updates or adds an endpoint configuration.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.endpoints == nil {
		r.endpoints = make(map[string]*EndpointConfig)
	}
	r.endpoints[name] = cfg
}

// SetChain updates or adds a capability chain.
func (r *Registry) SetChain(capability string, chain []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.chains == nil {
		r.chains = make(map[string][]string)
	}
	r.chains[capability] = chain
}

// ListEndpoints returns all configured endpoint names.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	return names
}
