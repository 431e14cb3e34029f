package inference

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("tidegate.inference.ollama")

// maxLineBytes bounds a single NDJSON line from the backend. Ollama deltas
// are small, but a reasoning model can emit long lines on the final object.
const maxLineBytes = 1024 * 1024

type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
}

// Ollama API request structure
type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
}

// NewOllamaClient builds a client for an Ollama-compatible backend at
// baseURL. Streaming requests get no client-side timeout; a generation can
// legitimately run for minutes and cancellation comes from the request
// context instead.
func NewOllamaClient(baseURL string) (*OllamaClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("backend base URL not set")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	slog.Info("Initializing Ollama client", "base_url", baseURL)
	return &OllamaClient{
		httpClient: &http.Client{},
		baseURL:    baseURL,
	}, nil
}

var _ Client = (*OllamaClient)(nil)

// Generate implements the Client interface (non-streaming path).
func (o *OllamaClient) Generate(ctx context.Context, model, prompt string) (string, error) {
	ctx, span := tracer.Start(ctx, "OllamaClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", model))

	resp, err := o.post(ctx, model, prompt, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to read response body from Ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		slog.Error("Ollama returned an error", "status_code", resp.StatusCode, "response", string(respBodyBytes))
		return "", fmt.Errorf("%w: status %d: %s", ErrBackendUnavailable, resp.StatusCode, string(respBodyBytes))
	}

	var ollamaResp ollamaGenerateResponse
	if err := json.Unmarshal(respBodyBytes, &ollamaResp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Failed to parse JSON response from Ollama", "error", err, "response", string(respBodyBytes))
		return "", fmt.Errorf("failed to parse Ollama response: %w", err)
	}
	return ollamaResp.Response, nil
}

// GenerateStream implements the Client interface (streaming path).
//
// The backend responds with one JSON object per line. Lines that fail to
// decode are logged and skipped rather than failing the stream; the backend
// occasionally interleaves non-JSON noise and losing a whole generation over
// one bad line is worse than losing the line. Context cancellation is
// checked between lines, and closing the response body on return tears down
// the backend connection.
func (o *OllamaClient) GenerateStream(ctx context.Context, model, prompt string, cb StreamCallback) error {
	ctx, span := tracer.Start(ctx, "OllamaClient.GenerateStream")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", model))

	resp, err := o.post(ctx, model, prompt, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.Error("Ollama returned an error", "status_code", resp.StatusCode, "response", string(body))
		err := fmt.Errorf("%w: status %d: %s", ErrBackendUnavailable, resp.StatusCode, string(body))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lines := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var chunk StreamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			slog.Debug("Skipping malformed backend line", "error", err, "line", string(line))
			continue
		}
		lines++
		if err := cb(chunk); err != nil {
			return err
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		// The connection died mid-generation. Distinguish our own
		// cancellation from a backend-side failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: stream interrupted after %d lines: %v", ErrBackendUnavailable, lines, err)
	}
	span.SetAttributes(attribute.Int("llm.stream_lines", lines))
	return nil
}

func (o *OllamaClient) post(ctx context.Context, model, prompt string, stream bool) (*http.Response, error) {
	payload := ollamaGenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: stream,
	}
	reqBodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request to Ollama: %w", err)
	}

	// Use NewRequestWithContext to respect context cancellation/timeout
	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/generate", bytes.NewBuffer(reqBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request to Ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	if err != nil {
		slog.Error("Ollama API call failed", "error", err, "elapsed", time.Since(start))
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return resp, nil
}
