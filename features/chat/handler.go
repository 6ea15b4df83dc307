package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"ragchat/internal/middleware"
	"ragchat/internal/provider"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message     string  `json:"message"`
		DocumentIDs []int64 `json:"document_ids"`
		TopK        int     `json:"top_k"`
		Stream      bool    `json:"stream"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "Message is required", http.StatusBadRequest)
		return
	}

	if req.Stream {
		h.stream(w, r, req.Message, req.DocumentIDs, req.TopK)
		return
	}

	answer, err := h.service.Ask(r.Context(), req.Message, req.DocumentIDs, req.TopK)
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": answer}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// stream writes the answer as Server-Sent Events: one data event per token
// batch, a sources event carrying the retrieved chunks, then [DONE].
func (h *Handler) stream(w http.ResponseWriter, r *http.Request, message string, documentIDs []int64, topK int) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	tokens, sources, err := h.service.AskStream(r.Context(), message, documentIDs, topK)
	if err != nil {
		h.writeServiceError(r.Context(), w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for token := range tokens {
		chunk, err := json.Marshal(map[string]string{"token": token})
		if err != nil {
			slog.Error("failed to encode stream token", "error", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", chunk)
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		default:
		}
	}

	meta, err := json.Marshal(map[string]interface{}{"sources": sources})
	if err != nil {
		slog.Error("failed to encode stream sources", "error", err)
	} else {
		fmt.Fprintf(w, "event: sources\ndata: %s\n\n", meta)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var provErr *provider.Error
	if errors.As(err, &provErr) {
		switch {
		case provider.IsInvalidInput(err):
			h.writeError(ctx, w, "VALIDATION_ERROR", "Query rejected by embedding provider", http.StatusBadRequest)
			return
		case provider.IsRetryable(err):
			h.writeError(ctx, w, "UPSTREAM_UNAVAILABLE", "Model provider is temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	slog.Error("chat request failed", "error", err)
	h.writeError(ctx, w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
