// Package embed provides an OpenAI-compatible embeddings client used for
// semantic clustering of failure texts.
package embed

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
)

const defaultTimeout = 60 * time.Second

// Client calls an OpenAI-compatible /embeddings endpoint. It implements
// cluster.Embedder.
type Client struct {
	HTTPClient *http.Client
	cfg        config.Embedding
	log        *slog.Logger
}

// NewClient returns a client for the configured embedding provider.
func NewClient(cfg config.Embedding) *Client {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = config.DefaultEmbedBatchSize
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		cfg:        cfg,
		log:        logging.New("embed"),
	}
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in order. Inputs are sent in
// batches so arbitrarily many texts fit under provider request limits.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(texts))
		vectors, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	c.log.Debug("texts embedded", "count", len(out), "model", c.cfg.Model)
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Input: texts, Model: c.cfg.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	u := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embeddings %s: %s", resp.Status, string(msg))
	}

	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(er.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(er.Data), len(texts))
	}

	// Providers are allowed to reorder data entries; index restores order.
	vectors := make([][]float32, len(texts))
	for _, d := range er.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
