package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"finstack/app/agent"
	"finstack/kb"
	"finstack/types"
)

const snippetLimit = 200

type RequestHandler struct {
	kb    *kb.Service
	agent *agent.Agent
}

func NewRequestHandler(service *kb.Service, answerer *agent.Agent) *RequestHandler {
	return &RequestHandler{
		kb:    service,
		agent: answerer,
	}
}

// HandleQuery runs one chat turn: search the knowledge base, assemble the
// context block, and let the LLM answer from it.
func (h *RequestHandler) HandleQuery(c *fiber.Ctx) error {
	var params types.QueryParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return types.NewValidationError(errs)
	}

	opts := []kb.SearchOption{}
	if params.TopK > 0 {
		opts = append(opts, kb.WithTopK(params.TopK))
	}
	if params.DocType != "" {
		opts = append(opts, kb.WithFilter("doc_type", params.DocType))
	}

	results, err := h.kb.Search(c.Context(), params.Message, opts...)
	if err != nil {
		return err
	}

	contextBlock := kb.BuildContext(results, h.kb.ScoreThreshold())

	answer, err := h.agent.GenerateAnswer(c.Context(), contextBlock, params.Message)
	if err != nil {
		return err
	}

	resp := types.QueryResponse{
		Answer:     answer,
		Sources:    formatSources(results, h.kb.ScoreThreshold()),
		Confidence: topScore(results),
		Timestamp:  time.Now(),
	}
	return c.JSON(resp)
}

// formatSources lists the documents the answer was grounded on. Results
// under the relevance threshold and the unavailable-index sentinel are not
// sources.
func formatSources(results []types.SearchResult, threshold float64) []types.Source {
	sources := make([]types.Source, 0, len(results))
	for _, res := range results {
		if res.Unavailable() || res.Score < threshold {
			continue
		}
		filename, _ := res.Metadata["filename"].(string)
		sources = append(sources, types.Source{
			ID:       res.ID,
			Filename: filename,
			Score:    res.Score,
			Snippet:  snippet(res.Content),
		})
	}
	return sources
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLimit {
		return content
	}
	return string(runes[:snippetLimit]) + "..."
}

func topScore(results []types.SearchResult) float64 {
	if len(results) == 0 || results[0].Unavailable() {
		return 0
	}
	return results[0].Score
}
