// Package ingress implements the Ingress Adapter (C7): the HTTP surface
// that accepts webhook batches, validates and dispatches them onto a
// bounded worker pool, and exposes health/diagnostic/admin endpoints.
package ingress

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/onchainsignal/tracker/internal/model"
	"github.com/onchainsignal/tracker/internal/parser"
)

// PriceResolver resolves the USD value of a token amount.
type PriceResolver interface {
	USDValue(ctx context.Context, tokenMint string, rawAmount uint64, decimals int) (float64, bool)
}

// AlertEvaluator evaluates the rule set for one priced event.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, ev model.TransferEvent) error
}

const defaultWorkers = 64
const defaultQueueSize = 1024

// Handler is the webhook HTTP endpoint plus its background pipeline.
type Handler struct {
	targetMint string
	price      PriceResolver
	engine     AlertEvaluator
	pool       *workerPool
	logger     zerolog.Logger
}

// NewHandler builds the webhook handler, launching its worker pool.
func NewHandler(targetMint string, price PriceResolver, engine AlertEvaluator, logger zerolog.Logger) *Handler {
	l := logger.With().Str("component", "webhook_handler").Logger()
	return &Handler{
		targetMint: targetMint,
		price:      price,
		engine:     engine,
		pool:       newWorkerPool(defaultWorkers, defaultQueueSize, l),
		logger:     l,
	}
}

// Close drains the worker pool.
func (h *Handler) Close() {
	h.pool.Close()
}

type webhookResponse struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Total     int `json:"total"`
}

// ServeHTTP decodes the batch (single object or array), validates each
// element synchronously, and submits valid elements to the worker pool
// before responding. The response is written as soon as every valid
// element is queued; submission blocks only while the pool's queue is
// full. Pipeline processing itself is fire-and-forget.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := decodeBatch(r.Body)
	if err != nil {
		http.Error(w, `{"error":"malformed request body"}`, http.StatusInternalServerError)
		return
	}

	resp := webhookResponse{Total: len(raw)}
	for _, elementBytes := range raw {
		var payload parser.RawPayload
		if err := json.Unmarshal(elementBytes, &payload); err != nil {
			resp.Skipped++
			h.logger.Warn().Err(err).Msg("malformed webhook element")
			continue
		}
		if err := payload.Validate(); err != nil {
			resp.Skipped++
			h.logger.Warn().Err(err).Msg("invalid webhook element")
			continue
		}

		resp.Processed++
		h.pool.Submit(func() {
			h.processPayload(payload)
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) processPayload(payload parser.RawPayload) {
	ctx := context.Background()

	ev, err := parser.Parse(payload, h.targetMint)
	if err != nil {
		h.logger.Warn().Err(err).Str("signature", payload.Signature).Msg("parse failed")
		return
	}
	if ev == nil {
		return
	}

	if usd, ok := h.price.USDValue(ctx, ev.TokenMint, ev.RawAmount, ev.Decimals); ok {
		ev.USDValue = &usd
	}

	if err := h.engine.Evaluate(ctx, *ev); err != nil {
		h.logger.Error().Err(err).Str("signature", ev.Signature).Msg("rule evaluation reported errors")
	}
}

// decodeBatch reads body as either a single JSON object or a JSON array,
// returning the raw bytes of each element, deciding by peeking at the
// first non-whitespace byte.
func decodeBatch(body io.Reader) ([]json.RawMessage, error) {
	dec := json.NewDecoder(body)

	var probe json.RawMessage
	if err := dec.Decode(&probe); err != nil {
		return nil, err
	}

	trimmed := firstNonSpace(probe)
	if trimmed == '[' {
		var elements []json.RawMessage
		if err := json.Unmarshal(probe, &elements); err != nil {
			return nil, err
		}
		return elements, nil
	}
	return []json.RawMessage{probe}, nil
}

func firstNonSpace(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return c
		}
	}
	return 0
}
