// Package main implements a mock model server for local development.
// It serves OpenAI-compatible /chat/completions responses from JSON fixture
// files, routing by the "model" field in the request, so the agent can be
// exercised without a real provider: fast, deterministic, and offline.
//
// Usage:
//
//	mock-llm -fixtures ./fixtures -addr :11434
//
// Fixture files are JSON named by model ("planner.json" answers requests for
// model "planner"). Sequential fixtures ("planner.1.json", "planner.2.json")
// make the Nth call return the Nth file, with the base file repeating after
// the sequence runs out. That is how correction-loop behavior is simulated:
// serve an invalid plan first, then a valid one.
//
// With no fixture directory, every model answers with a built-in minimal
// study plan.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// defaultFixture answers when no fixture matches: a minimal plan that
// passes plan validation for most constraint sets.
const defaultFixture = `{
  "days": [
    {"date": "2026-09-01", "blocks": [
      {"subject": "Math", "topic": "review", "minutes": 30, "kind": "study"}
    ]}
  ]
}`

type server struct {
	fixtures map[string][]string // model name to ordered fixture contents

	mu    sync.Mutex
	calls map[string]int // per-model call count, for sequence selection
}

func newServer(fixtures map[string][]string) *server {
	return &server{
		fixtures: fixtures,
		calls:    make(map[string]int),
	}
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory containing fixture response files")
	addr := flag.String("addr", ":11434", "listen address")
	flag.Parse()

	if envDir := os.Getenv("MOCK_LLM_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}

	fixtures := map[string][]string{}
	if *fixtureDir != "" {
		var err error
		fixtures, err = loadFixtures(*fixtureDir)
		if err != nil {
			log.Fatalf("Failed to load fixtures from %s: %v", *fixtureDir, err)
		}
		for model, seq := range fixtures {
			log.Printf("  model %s: %d fixture(s)", model, len(seq))
		}
	}

	s := newServer(fixtures)
	log.Printf("Mock model server listening on %s", *addr)
	if err := http.ListenAndServe(*addr, s.handler()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /chat/completions", s.handleChatCompletions)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /stats", s.handleStats)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	content := s.nextFixture(req.Model)
	log.Printf("model=%s messages=%d bytes=%d", req.Model, len(req.Messages), len(content))

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Usage: chatUsage{
			PromptTokens:     len(content) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	}
	choice := chatChoice{FinishReason: "stop"}
	choice.Message.Role = "assistant"
	choice.Message.Content = content
	resp.Choices = []chatChoice{choice}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// nextFixture picks the fixture for this model's next call. Within a
// sequence the Nth call gets the Nth fixture; past the end the last one
// repeats.
func (s *server) nextFixture(model string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.calls[model]
	s.calls[model]++

	seq, ok := s.fixtures[model]
	if !ok || len(seq) == 0 {
		return defaultFixture
	}
	if index >= len(seq) {
		index = len(seq) - 1
	}
	return seq[index]
}

// handleStats returns per-model call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	total := 0
	byModel := make(map[string]int, len(s.calls))
	for model, n := range s.calls {
		byModel[model] = n
		total += n
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":    total,
		"calls_by_model": byModel,
	})
}

// numberedFileRe matches sequence files like "planner.2.json".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// loadFixtures reads JSON files from dir into model-keyed sequences:
// numbered files in numeric order, then the base file as the repeating tail.
func loadFixtures(dir string) (map[string][]string, error) {
	baseFiles := make(map[string]string)
	numberedFiles := make(map[string]map[int]string)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("invalid JSON in %s", path)
		}

		if matches := numberedFileRe.FindStringSubmatch(info.Name()); matches != nil {
			model := matches[1]
			index, _ := strconv.Atoi(matches[2])
			if numberedFiles[model] == nil {
				numberedFiles[model] = make(map[int]string)
			}
			numberedFiles[model][index] = string(data)
			return nil
		}

		baseFiles[strings.TrimSuffix(info.Name(), ".json")] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}

	fixtures := make(map[string][]string)
	for model, numbered := range numberedFiles {
		indices := make([]int, 0, len(numbered))
		for idx := range numbered {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			fixtures[model] = append(fixtures[model], numbered[idx])
		}
	}
	for model, content := range baseFiles {
		fixtures[model] = append(fixtures[model], content)
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}
