// Package agent turns an assembled knowledge-base context and a user
// question into an LLM answer. It is prompt-construction glue around the
// core, not part of retrieval itself.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

const systemPrompt = `You are FinStack AI Support. Help users understand dashboards, metrics, and financial concepts in this app. Be concise (2-4 sentences), friendly, and avoid heavy legal disclaimers unless necessary. Answer only from the provided context; if the context is empty or does not cover the question, say you have no information on it.`

const unreachableFallback = "I had trouble reaching the AI engine just now. Please try again in a moment."

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type Agent struct {
	url    string
	model  string
	client *http.Client
	logger *slog.Logger
}

func New(url, model string) *Agent {
	return &Agent{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: 120 * time.Second},
		logger: slog.Default(),
	}
}

// GenerateAnswer builds the grounded prompt and asks the LLM. An
// unreachable LLM degrades to a fixed fallback answer instead of failing
// the whole chat turn.
func (a *Agent) GenerateAnswer(ctx context.Context, contextBlock, question string) (string, error) {
	start := time.Now()
	defer func() {
		a.logger.Debug("llm answer generated", "took", time.Since(start))
	}()

	prompt := BuildPrompt(contextBlock, question)

	reqBody, err := json.Marshal(generateRequest{
		Model:  a.model,
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	if count, err := CountTokens(reqBody); err == nil {
		a.logger.Debug("prompt size", "tokens", count, "bytes", len(reqBody))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Warn("llm unreachable, using fallback answer", "error", err)
		return unreachableFallback, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err == nil && genResp.Response != "" {
		return genResp.Response, nil
	}

	// Streaming response: concatenate the chunks.
	var output string
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk generateResponse
		if err := decoder.Decode(&chunk); err != nil {
			break
		}
		output += chunk.Response
	}
	if output == "" {
		return "", fmt.Errorf("llm returned an empty answer")
	}
	return output, nil
}

// BuildPrompt embeds the assembled context block and the question into the
// answer prompt. The context block is the only grounding the model gets.
func BuildPrompt(contextBlock, question string) string {
	return fmt.Sprintf(`Answer the question based on the given context. If the context contains no information for the question, say 'No information for this request.' and nothing else.
Context:
%s
Question:
%s
Answer:`, contextBlock, question)
}

// CountTokens estimates the token footprint of a request payload.
func CountTokens(data []byte) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	tokens := enc.Encode(string(data), nil, nil)
	return len(tokens), nil
}
