package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("[Source 1] facts here", "What are the facts?")

	assert.Contains(t, prompt, "[Source 1] facts here")
	assert.Contains(t, prompt, "What are the facts?")
	assert.Contains(t, prompt, "No information for this request.")
}

func TestGenerateAnswerPlainResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.NotEmpty(t, req.System)

		json.NewEncoder(w).Encode(generateResponse{Response: "the answer"})
	}))
	defer srv.Close()

	a := New(srv.URL, "test-model")
	answer, err := a.GenerateAnswer(context.Background(), "some context", "question?")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
}

func TestGenerateAnswerStreamingResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(generateResponse{Response: "part one, "})
		enc.Encode(generateResponse{Response: "part two"})
	}))
	defer srv.Close()

	a := New(srv.URL, "test-model")
	answer, err := a.GenerateAnswer(context.Background(), "ctx", "q")
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", answer)
}

func TestGenerateAnswerFallbackWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	a := New(srv.URL, "test-model")
	answer, err := a.GenerateAnswer(context.Background(), "ctx", "q")
	require.NoError(t, err)
	assert.Equal(t, unreachableFallback, answer)
}

func TestGenerateAnswerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	a := New(srv.URL, "test-model")
	_, err := a.GenerateAnswer(context.Background(), "ctx", "q")
	assert.Error(t, err)
}
