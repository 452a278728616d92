package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"prowaudit/internal/config"
	"prowaudit/internal/logging"
	"prowaudit/internal/taxonomy"
)

const defaultTimeout = 120 * time.Second

const systemPrompt = `You are a CI failure analyst. You are given excerpts from a Prow step's build log: head lines (plus random middle samples for large logs), tail lines, and extracted error lines. Identify what happened and respond with a single JSON object, no markdown, with these fields:
  "status": one of SUCCESS, FAILURE, ERROR, UNKNOWN
  "failure_type": one of %s
  "error_category": one of %s
  "root_cause": the root cause in 10 words or less, stating the problem, not its consequences
  "analysis": a detailed explanation of what happened in this step
  "confidence": a number from 0.0 to 1.0`

// HTTPClassifier talks to an OpenAI-compatible chat completions endpoint.
type HTTPClassifier struct {
	HTTPClient *http.Client
	cfg        config.LLM
	log        *slog.Logger
}

// NewHTTPClassifier returns a classifier for the configured provider.
// HTTPClient may be overridden before first use; it defaults to a client
// with a generous timeout since large logs make slow completions.
func NewHTTPClassifier(cfg config.LLM) *HTTPClassifier {
	return &HTTPClassifier{
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		cfg:        cfg,
		log:        logging.New("classify"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// AnalyzeStep sends the step's log evidence to the provider and returns the
// normalized verdict. The returned usage is valid whenever err is nil.
func (c *HTTPClassifier) AnalyzeStep(ctx context.Context, step StepContext) (*Verdict, *Usage, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt,
				joinVocab(taxonomy.FailureTypes), joinVocab(taxonomy.ErrorCategories))},
			{Role: "user", Content: buildUserPrompt(step)},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}

	u := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, nil, fmt.Errorf("chat completions %s: %s", resp.Status, string(msg))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, nil, fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, nil, fmt.Errorf("chat completions: empty choices")
	}

	var raw rawVerdict
	content := cleanJSON([]byte(cr.Choices[0].Message.Content))
	if err := json.Unmarshal(content, &raw); err != nil {
		return nil, nil, fmt.Errorf("parse verdict json: %w", err)
	}
	usage := &Usage{
		PromptTokens:     cr.Usage.PromptTokens,
		CompletionTokens: cr.Usage.CompletionTokens,
	}
	v := raw.normalize()
	c.log.Debug("step analyzed", "step", step.StepName, "status", v.Status, "confidence", v.Confidence)
	return v, usage, nil
}

func buildUserPrompt(step StepContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step: %s\nStage: %s\nTotal log lines: %d\n", step.StepName, step.StageName, step.TotalLines)
	b.WriteString("\n--- LOG HEAD ---\n")
	b.WriteString(step.LogHead)
	b.WriteString("\n--- LOG TAIL ---\n")
	b.WriteString(step.LogTail)
	if step.ExtractedErrors != "" {
		b.WriteString("\n--- EXTRACTED ERRORS ---\n")
		b.WriteString(step.ExtractedErrors)
	}
	return b.String()
}

func joinVocab[T ~string](members []T) string {
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = string(m)
	}
	return strings.Join(parts, ", ")
}

// cleanJSON strips markdown code fences and leading/trailing whitespace.
// Models often wrap JSON in ```json ... ``` blocks even when told not to.
func cleanJSON(data []byte) []byte {
	s := bytes.TrimSpace(data)
	if len(s) == 0 {
		return s
	}
	if bytes.HasPrefix(s, []byte("```")) {
		if idx := bytes.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		if bytes.HasSuffix(s, []byte("```")) {
			s = s[:len(s)-3]
		}
		s = bytes.TrimSpace(s)
	}
	return s
}
