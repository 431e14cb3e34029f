package inference

import (
	"context"
	"errors"
)

// ErrBackendUnavailable wraps any failure to reach or hold a connection to
// the inference backend, whether at dial time or mid-stream.
var ErrBackendUnavailable = errors.New("inference backend unavailable")

// StreamChunk is one decoded line of the backend's NDJSON stream.
//
// Response is a pointer so a line that carries an empty delta is
// distinguishable from a line with no response field at all (status or
// completion markers). Only chunks with Response != nil carry content.
type StreamChunk struct {
	Model     string  `json:"model"`
	CreatedAt string  `json:"created_at"`
	Response  *string `json:"response"`
	Done      bool    `json:"done"`
}

// StreamCallback receives chunks in backend order. Returning a non-nil error
// aborts the stream; the error propagates out of GenerateStream unchanged.
type StreamCallback func(chunk StreamChunk) error

// Client is the gateway's view of a text-generation backend.
type Client interface {
	// Generate runs a non-streaming completion and returns the full text.
	Generate(ctx context.Context, model, prompt string) (string, error)

	// GenerateStream runs a streaming completion, invoking cb once per
	// decoded line. It returns nil when the backend closes the stream
	// normally and an error wrapping ErrBackendUnavailable when the
	// connection fails before or during the stream.
	GenerateStream(ctx context.Context, model, prompt string, cb StreamCallback) error
}
