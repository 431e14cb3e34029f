// Copyright (C) 2025 Tidegate Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package relay connects composed prompts to the inference backend and
// drives the per-delta fan-out: emit to the client, persist to the session,
// pace, repeat.
package relay

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tidegate/tidegate/services/gateway/composer"
	"github.com/tidegate/tidegate/services/gateway/store"
	"github.com/tidegate/tidegate/services/inference"
)

var tracer = otel.Tracer("tidegate.gateway.relay")

// DefaultPacing is the delay inserted between relayed deltas when no
// explicit pacing is configured.
const DefaultPacing = 100 * time.Millisecond

// StreamEvent is one client-facing delta.
type StreamEvent struct {
	Response    string `json:"response"`
	SessionID   string `json:"session_id"`
	FileContext bool   `json:"file_context"`
}

// Emitter receives events in order. A non-nil error aborts the stream.
type Emitter func(ev StreamEvent) error

// Request is a validated generation request, independent of the transport
// that carried it.
type Request struct {
	Prompt    string
	Model     string
	SessionID string
	Document  composer.DocumentRef
}

// Relay owns the session store, the composer, and the backend client.
type Relay struct {
	sessions *store.SessionStore
	composer *composer.Composer
	client   inference.Client
	pacing   time.Duration
}

// New builds a relay. pacing < 0 selects DefaultPacing; pacing == 0 disables
// the inter-delta delay (used in tests).
func New(sessions *store.SessionStore, comp *composer.Composer, client inference.Client, pacing time.Duration) *Relay {
	if pacing < 0 {
		pacing = DefaultPacing
	}
	return &Relay{sessions: sessions, composer: comp, client: client, pacing: pacing}
}

// Generation is a prepared exchange: the session is resolved and the user
// turn is committed, but the backend has not been contacted yet.
type Generation struct {
	SessionID    string
	Model        string
	FullPrompt   string
	UsedDocument bool

	relay *Relay
}

// Prepare resolves the session, composes the backend prompt, and commits the
// user turn to history.
//
// A composer.ErrUnknownDocument failure happens before the turn is committed
// and before any backend traffic, so callers can still answer with a plain
// JSON error. After Prepare returns successfully the user turn is durable in
// the session whether or not the backend ever produces output.
func (r *Relay) Prepare(ctx context.Context, req Request) (*Generation, error) {
	ctx, span := tracer.Start(ctx, "Relay.Prepare")
	defer span.End()

	sessionID := r.sessions.Ensure(req.SessionID)
	span.SetAttributes(attribute.String("session.id", sessionID))

	history := r.sessions.Snapshot(sessionID)
	comp, err := r.composer.Compose(req.Prompt, req.Document, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	r.sessions.Append(sessionID, comp.Turn)

	return &Generation{
		SessionID:    sessionID,
		Model:        req.Model,
		FullPrompt:   comp.FullPrompt,
		UsedDocument: comp.UsedDocument,
		relay:        r,
	}, nil
}

// Stream drives the backend and relays every content delta to emit.
//
// Each delta is appended to the session history as its own entry before it
// is emitted, so a snapshot taken mid-stream always shows a prefix of the
// response in backend order. After each delta the relay waits out the
// configured pacing delay, with ctx.Done as the other select arm so a client
// disconnect never blocks on the timer.
//
// Returns nil on normal exhaustion. Returns ctx.Err() when the client went
// away and the backend's error otherwise; in both cases deltas already
// relayed stay in the session history.
func (g *Generation) Stream(ctx context.Context, emit Emitter) error {
	return g.run(ctx, emit, g.relay.pacing)
}

func (g *Generation) run(ctx context.Context, emit Emitter, pacing time.Duration) error {
	ctx, span := tracer.Start(ctx, "Generation.Stream")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", g.SessionID),
		attribute.Bool("session.file_context", g.UsedDocument),
	)

	r := g.relay
	deltas := 0
	err := r.client.GenerateStream(ctx, g.Model, g.FullPrompt, func(chunk inference.StreamChunk) error {
		if chunk.Response == nil {
			return nil
		}
		delta := *chunk.Response
		r.sessions.Append(g.SessionID, delta)
		deltas++
		if err := emit(StreamEvent{
			Response:    delta,
			SessionID:   g.SessionID,
			FileContext: g.UsedDocument,
		}); err != nil {
			return err
		}
		if pacing > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.pacing):
			}
		}
		return nil
	})
	span.SetAttributes(attribute.Int("relay.deltas", deltas))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("stream ended with error", "sessionId", g.SessionID, "deltas", deltas, "error", err)
		return err
	}
	slog.Debug("stream complete", "sessionId", g.SessionID, "deltas", deltas)
	return nil
}

// Accumulate drives the backend like Stream but buffers the deltas and
// returns the concatenated response, for non-streaming clients. Session
// history semantics are identical to Stream; the pacing delay is skipped
// since nothing downstream is consuming incrementally.
func (g *Generation) Accumulate(ctx context.Context) (string, error) {
	var full string
	err := g.run(ctx, func(ev StreamEvent) error {
		full += ev.Response
		return nil
	}, 0)
	if err != nil {
		return "", err
	}
	return full, nil
}
