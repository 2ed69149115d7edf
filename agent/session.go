package agent

import (
	"context"
	"log/slog"
	"strings"
)

// SessionConfig bounds conversation input to the session handler.
type SessionConfig struct {
	// MaxMessages is how many trailing non-empty messages are kept.
	MaxMessages int
	// MaxHistoryChars rejects histories above this total content size.
	MaxHistoryChars int
	// MaxResumeChars truncates consumed resume text.
	MaxResumeChars int
}

// DefaultSessionConfig returns the default input bounds.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxMessages:     30,
		MaxHistoryChars: 24000,
		MaxResumeChars:  12000,
	}
}

// Session is the entry point consumed by the external chat UI. It owns
// request validation and input shaping, then delegates to the PlanAgent.
// It holds no per-request state: everything a turn needs travels in the
// supplied message history.
type Session struct {
	agent  *PlanAgent
	cfg    SessionConfig
	logger *slog.Logger
}

// NewSession creates a session handler over a PlanAgent.
func NewSession(agent *PlanAgent, cfg SessionConfig, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxMessages < 1 {
		cfg = DefaultSessionConfig()
	}
	return &Session{agent: agent, cfg: cfg, logger: logger}
}

// Handle validates and shapes one chat submission, then runs the agent.
// Malformed input returns an InvalidRequestError before any provider call;
// generation-side problems never surface as errors.
func (s *Session) Handle(ctx context.Context, mode string, messages []Message, resumeText string) (*AgentResponse, error) {
	parsedMode, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}

	history, err := s.shapeHistory(messages)
	if err != nil {
		return nil, err
	}

	// Resume context is scoped to the current turn only: prepended to
	// the latest user message, never stored as its own turn.
	if resume := CleanResumeText(resumeText, s.cfg.MaxResumeChars); resume != "" {
		last := len(history) - 1
		history[last].Content = "RESUME_CONTEXT:\n" + resume + "\n\n" + history[last].Content
	}

	return s.agent.Run(ctx, parsedMode, history)
}

// shapeHistory validates the raw history and truncates it to the most
// recent non-empty messages. Older context is dropped, not summarized.
func (s *Session) shapeHistory(messages []Message) ([]Message, error) {
	if len(messages) == 0 {
		return nil, NewInvalidRequest("messages must not be empty")
	}

	totalChars := 0
	history := make([]Message, 0, len(messages))
	for i, msg := range messages {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			return nil, NewInvalidRequest("messages[%d].role %q must be \"user\" or \"assistant\"", i, msg.Role)
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		totalChars += len(msg.Content)
		history = append(history, msg)
	}

	if len(history) == 0 {
		return nil, NewInvalidRequest("messages must contain at least one non-empty message")
	}
	if history[len(history)-1].Role != RoleUser {
		return nil, NewInvalidRequest("the last message must have role \"user\"")
	}
	if totalChars > s.cfg.MaxHistoryChars {
		return nil, NewInvalidRequest("message history too large (%d chars, limit %d); keep it shorter", totalChars, s.cfg.MaxHistoryChars)
	}

	if len(history) > s.cfg.MaxMessages {
		dropped := len(history) - s.cfg.MaxMessages
		s.logger.Debug("Truncated history", "dropped", dropped, "kept", s.cfg.MaxMessages)
		history = history[dropped:]
	}

	return history, nil
}

// CleanResumeText sanitizes extracted resume text and bounds its size so
// it cannot blow up the prompt. Exposed for the upload boundary to reuse.
func CleanResumeText(text string, maxChars int) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\x00", ""))
	if maxChars > 0 && len(text) > maxChars {
		text = text[:maxChars] + "\n\n[Resume text truncated]"
	}
	return text
}
