package agent

import (
	"context"
	"log/slog"

	"github.com/studysprint/studysprint/llm"
)

// Completer is the subset of the llm client used by the agent.
// Extracted as an interface to enable testing with scripted responses.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// GenerationPolicy bounds the validated-generation loop. Read per request
// through a provider func so it can be hot-reloaded.
type GenerationPolicy struct {
	// MaxAttempts is the total number of provider calls before the
	// deterministic fallback is served.
	MaxAttempts int
	// MaxTokens limits response length per attempt.
	MaxTokens int
	// Temperature controls generation randomness.
	Temperature float64
}

// DefaultGenerationPolicy returns the default loop bounds.
func DefaultGenerationPolicy() GenerationPolicy {
	return GenerationPolicy{
		MaxAttempts: 3,
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

// GenerateInput describes one validated-generation request.
type GenerateInput struct {
	// Capability selects the model chain.
	Capability string
	// System is the system prompt, always re-sent on every attempt.
	System string
	// Messages is the conversation to ground the generation in.
	Messages []llm.Message
	// Shape is the expected output structure.
	Shape Shape
	// Constraints backs StudyPlan validation; nil for other shapes.
	Constraints *StudyConstraints
}

// GenerateResult is the outcome of a validated-generation call. Output is
// always non-nil and schema-valid: either a validated model output or the
// deterministic fallback.
type GenerateResult struct {
	Output *ParsedOutput

	// Attempts records every attempt made, in order.
	Attempts []GenerationAttempt

	// FellBack is true when attempts exhausted and Output is the
	// deterministic fallback.
	FellBack bool

	// ProviderFailed is true when at least one attempt failed at the
	// provider rather than at validation.
	ProviderFailed bool

	// Degraded is true when a non-primary model produced the output.
	Degraded bool

	// Model is the model that produced the accepted output, if any.
	Model string
}

// Generator runs the bounded generate-validate-correct loop. Attempts are
// sequential: each correction prompt depends on the previous attempt's
// validation errors. The loop always terminates in a valid output — the
// caller never sees an unparseable or partially-typed result.
type Generator struct {
	llm     Completer
	logger  *slog.Logger
	policy  func() GenerationPolicy
	observe func(shape string, attempts int, fellBack bool)
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithGenerationPolicy sets the policy provider. The func is called once
// per Generate so reloaded policy takes effect on the next request.
func WithGenerationPolicy(policy func() GenerationPolicy) GeneratorOption {
	return func(g *Generator) {
		g.policy = policy
	}
}

// WithAttemptObserver registers a hook called once per Generate with the
// number of provider attempts made and whether the fallback was served.
func WithAttemptObserver(observe func(shape string, attempts int, fellBack bool)) GeneratorOption {
	return func(g *Generator) {
		g.observe = observe
	}
}

// NewGenerator creates a Generator backed by the given completion client.
func NewGenerator(completer Completer, opts ...GeneratorOption) *Generator {
	g := &Generator{
		llm:    completer,
		logger: slog.Default(),
		policy: DefaultGenerationPolicy,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs up to MaxAttempts provider calls, feeding validation
// errors back as correction prompts between attempts. When attempts
// exhaust it serves the deterministic fallback for the expected shape
// without another provider call.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) *GenerateResult {
	policy := g.policy()
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	temperature := policy.Temperature

	result := &GenerateResult{}

	messages := make([]llm.Message, 0, len(in.Messages)+1+2*maxAttempts)
	messages = append(messages, llm.Message{Role: "system", Content: in.System})
	messages = append(messages, in.Messages...)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := g.llm.Complete(ctx, llm.Request{
			Capability:  in.Capability,
			Messages:    messages,
			Temperature: &temperature,
			MaxTokens:   policy.MaxTokens,
			JSONOutput:  true,
		})
		if err != nil {
			result.ProviderFailed = true
			result.Attempts = append(result.Attempts, GenerationAttempt{
				Number:        attempt,
				ProviderError: err.Error(),
			})
			g.logger.Warn("Provider call failed",
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"capability", in.Capability,
				"error", err)

			// A dead context cannot produce a better attempt.
			if ctx.Err() != nil {
				break
			}
			continue
		}

		parsed, violations := ValidateOutput(resp.Content, in.Shape, in.Constraints)
		if parsed != nil {
			result.Output = parsed
			result.Model = resp.Model
			result.Degraded = !resp.Primary
			g.logger.Debug("Generation validated",
				"attempt", attempt,
				"shape", in.Shape,
				"model", resp.Model)
			if g.observe != nil {
				g.observe(string(in.Shape), attempt, false)
			}
			return result
		}

		result.Attempts = append(result.Attempts, GenerationAttempt{
			Number:           attempt,
			RawOutput:        resp.Content,
			ValidationErrors: violations,
		})
		g.logger.Warn("Generation failed validation",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"shape", in.Shape,
			"violations", len(violations))

		if attempt < maxAttempts {
			// Feed the violations back so the next attempt can fix
			// all of them at once.
			messages = append(messages,
				llm.Message{Role: "assistant", Content: resp.Content},
				llm.Message{Role: "user", Content: correctionPrompt(in.Shape, violations)},
			)
		}
	}

	result.FellBack = true
	result.Output = fallbackOutput(in.Shape, in.Constraints, result.ProviderFailed)
	g.logger.Warn("Generation exhausted, serving deterministic fallback",
		"shape", in.Shape,
		"attempts", len(result.Attempts),
		"provider_failed", result.ProviderFailed)
	if g.observe != nil {
		g.observe(string(in.Shape), len(result.Attempts), true)
	}
	return result
}
