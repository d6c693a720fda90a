package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"argus-worker-go/internal/config"
	"argus-worker-go/internal/models"
)

// Backend answers one description request for a frame
type Backend interface {
	Describe(ctx context.Context, req *models.InferenceRequest) (string, error)
}

const describePrompt = "Describe what is happening in this camera frame in one short sentence."

// HTTPBackend talks to an Ollama-compatible vision-language endpoint
type HTTPBackend struct {
	cfg    *config.Config
	client *http.Client
}

// NewHTTPBackend creates the backend. Per-request deadlines come from the
// caller's context; the client itself has no timeout.
func NewHTTPBackend(cfg *config.Config) *HTTPBackend {
	return &HTTPBackend{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Describe sends the frame and context to the model and returns its answer
func (b *HTTPBackend) Describe(ctx context.Context, req *models.InferenceRequest) (string, error) {
	prompt := describePrompt
	if req.Context != "" {
		prompt = req.Context + "\n\n" + describePrompt
	}

	body, err := json.Marshal(generateRequest{
		Model:  b.cfg.InferenceModel,
		Prompt: prompt,
		Images: []string{base64.StdEncoding.EncodeToString(req.JPEG)},
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal inference request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(b.cfg.InferenceURL, "/")+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build inference request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", models.ErrInferenceTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", models.ErrInferenceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", models.ErrInferenceUnavailable, resp.StatusCode, payload)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode inference response: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}
