package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postChat(t *testing.T, handler http.Handler, model string) string {
	t.Helper()
	body := `{"model": "` + model + `", "messages": [{"role": "user", "content": "hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	return resp.Choices[0].Message.Content
}

func TestServer_DefaultFixture(t *testing.T) {
	s := newServer(nil)
	content := postChat(t, s.handler(), "anything")
	assert.Contains(t, content, `"days"`)
}

func TestServer_SequentialFixtures(t *testing.T) {
	s := newServer(map[string][]string{
		"planner": {`{"try": 1}`, `{"try": 2}`},
	})
	handler := s.handler()

	assert.Equal(t, `{"try": 1}`, postChat(t, handler, "planner"))
	assert.Equal(t, `{"try": 2}`, postChat(t, handler, "planner"))
	// Past the end the last fixture repeats.
	assert.Equal(t, `{"try": 2}`, postChat(t, handler, "planner"))
}

func TestServer_Stats(t *testing.T) {
	s := newServer(map[string][]string{"planner": {`{}`}})
	handler := s.handler()
	postChat(t, handler, "planner")
	postChat(t, handler, "planner")

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var stats struct {
		TotalCalls   int            `json:"total_calls"`
		CallsByModel map[string]int `json:"calls_by_model"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalCalls)
	assert.Equal(t, 2, stats.CallsByModel["planner"])
}

func TestLoadFixtures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planner.1.json"), []byte(`{"n": 1}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planner.2.json"), []byte(`{"n": 2}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planner.json"), []byte(`{"n": 0}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chat.json"), []byte(`{"reply_markdown": "hi"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	fixtures, err := loadFixtures(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{`{"n": 1}`, `{"n": 2}`, `{"n": 0}`}, fixtures["planner"])
	assert.Equal(t, []string{`{"reply_markdown": "hi"}`}, fixtures["chat"])
	assert.NotContains(t, fixtures, "notes")
}

func TestLoadFixtures_RejectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{nope"), 0o644))

	_, err := loadFixtures(dir)
	assert.Error(t, err)
}

func TestLoadFixtures_EmptyDir(t *testing.T) {
	_, err := loadFixtures(t.TempDir())
	assert.Error(t, err)
}
