// Package config provides configuration loading and management for StudySprint.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/studysprint/studysprint/llm"
)

// Config represents the complete StudySprint configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Model       ModelConfig       `yaml:"model"`
	Generation  GenerationConfig  `yaml:"generation"`
	Feasibility FeasibilityConfig `yaml:"feasibility"`
	Session     SessionConfig     `yaml:"session"`
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	// Addr is the listen address (default: ":8080").
	Addr string `yaml:"addr"`
}

// ModelConfig configures model endpoints and capability chains.
type ModelConfig struct {
	// Endpoints maps model names to provider endpoints.
	Endpoints map[string]EndpointConfig `yaml:"endpoints"`
	// Chains maps capabilities (classify, converse, plan) to ordered
	// model names, primary first.
	Chains map[string][]string `yaml:"chains"`
	// Timeout bounds a single provider call.
	Timeout time.Duration `yaml:"timeout"`
	// Temperature controls generation randomness (0.0-1.0).
	Temperature float64 `yaml:"temperature"`
}

// EndpointConfig mirrors llm.EndpointConfig in YAML form.
type EndpointConfig struct {
	Provider string `yaml:"provider"`
	URL      string `yaml:"url"`
	Model    string `yaml:"model"`
}

// GenerationConfig configures the validated-generation loop.
type GenerationConfig struct {
	// MaxAttempts is the number of generation attempts before the
	// deterministic fallback is served.
	MaxAttempts int `yaml:"max_attempts"`
	// MaxTokens limits response length per attempt. 0 uses endpoint default.
	MaxTokens int `yaml:"max_tokens"`
}

// FeasibilityConfig is the tunable cost model for the feasibility check.
// The numbers are policy, not business truth; deployments adjust them.
type FeasibilityConfig struct {
	// BaseTopicMinutes is the estimated study cost of one topic at
	// medium priority.
	BaseTopicMinutes int `yaml:"base_topic_minutes"`
	// PriorityMultipliers scales the per-topic cost by subject priority.
	PriorityMultipliers map[string]float64 `yaml:"priority_multipliers"`
}

// SessionConfig bounds conversation input.
type SessionConfig struct {
	// MaxMessages is how many trailing messages of history are kept.
	MaxMessages int `yaml:"max_messages"`
	// MaxHistoryChars rejects request histories above this total size.
	MaxHistoryChars int `yaml:"max_history_chars"`
	// MaxResumeChars truncates consumed resume text to this size.
	MaxResumeChars int `yaml:"max_resume_chars"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Model: ModelConfig{
			Endpoints: map[string]EndpointConfig{
				"primary": {
					Provider: "openai",
					URL:      "https://openrouter.ai/api/v1",
					Model:    "openai/gpt-oss-20b:free",
				},
				"fallback": {
					Provider: "openai",
					URL:      "https://openrouter.ai/api/v1",
					Model:    "openai/gpt-oss-120b:free",
				},
			},
			Chains: map[string][]string{
				llm.CapabilityClassify: {"primary", "fallback"},
				llm.CapabilityConverse: {"primary", "fallback"},
				llm.CapabilityPlan:     {"primary", "fallback"},
			},
			Timeout:     30 * time.Second,
			Temperature: 0.7,
		},
		Generation: GenerationConfig{
			MaxAttempts: 3,
			MaxTokens:   4096,
		},
		Feasibility: FeasibilityConfig{
			BaseTopicMinutes: 45,
			PriorityMultipliers: map[string]float64{
				"low":    0.75,
				"medium": 1.0,
				"high":   1.4,
			},
		},
		Session: SessionConfig{
			MaxMessages:     30,
			MaxHistoryChars: 24000,
			MaxResumeChars:  12000,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if len(c.Model.Endpoints) == 0 {
		return fmt.Errorf("model.endpoints is required")
	}
	for name, ep := range c.Model.Endpoints {
		if ep.Provider == "" {
			return fmt.Errorf("model.endpoints.%s.provider is required", name)
		}
		if ep.Model == "" {
			return fmt.Errorf("model.endpoints.%s.model is required", name)
		}
	}
	for capability, chain := range c.Model.Chains {
		for _, model := range chain {
			if _, ok := c.Model.Endpoints[model]; !ok {
				return fmt.Errorf("model.chains.%s references unknown endpoint %q", capability, model)
			}
		}
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.Generation.MaxAttempts < 1 {
		return fmt.Errorf("generation.max_attempts must be at least 1")
	}
	if c.Feasibility.BaseTopicMinutes <= 0 {
		return fmt.Errorf("feasibility.base_topic_minutes must be positive")
	}
	for _, priority := range []string{"low", "medium", "high"} {
		mult, ok := c.Feasibility.PriorityMultipliers[priority]
		if !ok {
			return fmt.Errorf("feasibility.priority_multipliers.%s is required", priority)
		}
		if mult <= 0 {
			return fmt.Errorf("feasibility.priority_multipliers.%s must be positive", priority)
		}
	}
	if c.Session.MaxMessages < 1 {
		return fmt.Errorf("session.max_messages must be at least 1")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, layered over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Registry builds an llm.Registry from the model configuration.
func (c *Config) Registry() *llm.Registry {
	endpoints := make(map[string]*llm.EndpointConfig, len(c.Model.Endpoints))
	for name, ep := range c.Model.Endpoints {
		endpoints[name] = &llm.EndpointConfig{
			Provider: ep.Provider,
			URL:      ep.URL,
			Model:    ep.Model,
		}
	}

	chains := make(map[string][]string, len(c.Model.Chains))
	for capability, chain := range c.Model.Chains {
		chains[capability] = append([]string(nil), chain...)
	}

	return llm.NewRegistry(chains, endpoints)
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}

	if len(other.Model.Endpoints) > 0 {
		c.Model.Endpoints = other.Model.Endpoints
	}
	if len(other.Model.Chains) > 0 {
		c.Model.Chains = other.Model.Chains
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}

	if other.Generation.MaxAttempts != 0 {
		c.Generation.MaxAttempts = other.Generation.MaxAttempts
	}
	if other.Generation.MaxTokens != 0 {
		c.Generation.MaxTokens = other.Generation.MaxTokens
	}

	if other.Feasibility.BaseTopicMinutes != 0 {
		c.Feasibility.BaseTopicMinutes = other.Feasibility.BaseTopicMinutes
	}
	if len(other.Feasibility.PriorityMultipliers) > 0 {
		c.Feasibility.PriorityMultipliers = other.Feasibility.PriorityMultipliers
	}

	if other.Session.MaxMessages != 0 {
		c.Session.MaxMessages = other.Session.MaxMessages
	}
	if other.Session.MaxHistoryChars != 0 {
		c.Session.MaxHistoryChars = other.Session.MaxHistoryChars
	}
	if other.Session.MaxResumeChars != 0 {
		c.Session.MaxResumeChars = other.Session.MaxResumeChars
	}
}
