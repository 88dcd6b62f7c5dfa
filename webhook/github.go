// Package webhook binds the ingestion pipeline to HTTP: signature
// verification, event decoding, filtering, mapping, and delivery, with the
// status codes each stage maps to.
package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	gogithub "github.com/google/go-github/v57/github"

	"prbridge/internal"
	"prbridge/pkg/bridge"
	"prbridge/pkg/github"
)

// GitHubHandler receives signed GitHub webhook deliveries and forwards
// pull request notifications to the sink. Stages short-circuit in order:
// nothing is parsed before the signature verifies.
type GitHubHandler struct {
	secret  []byte
	mapper  bridge.Config
	filters *internal.FilterEngine
	sink    internal.Sink
	logger  *log.Logger
	maxBody int64
}

// NewGitHubHandler creates a handler. filters may be nil to disable
// filtering; maxBody <= 0 disables the body size guard.
func NewGitHubHandler(secret string, mapper bridge.Config, filters *internal.FilterEngine, sink internal.Sink, logger *log.Logger, maxBody int64) *GitHubHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &GitHubHandler{
		secret:  []byte(secret),
		mapper:  mapper,
		filters: filters,
		sink:    sink,
		logger:  logger,
		maxBody: maxBody,
	}
}

// ServeHTTP handles one webhook delivery.
func (h *GitHubHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	delivery := gogithub.DeliveryID(r)
	if delivery != "" {
		w.Header().Set("X-Request-Id", delivery)
	}
	logger := internal.WithRequestID(h.logger, delivery)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("X-Hub-Signature-256")
	if sigHeader == "" {
		internal.IncAuthFailure("missing")
		logger.Printf("auth failed: missing signature header")
		http.Error(w, "missing signature", http.StatusBadRequest)
		return
	}
	if err := github.VerifySignature(body, h.secret, sigHeader); err != nil {
		status := http.StatusUnauthorized
		kind := "invalid"
		if errors.Is(err, github.ErrMalformedSignature) {
			status = http.StatusBadRequest
			kind = "malformed"
		}
		internal.IncAuthFailure(kind)
		logger.Printf("auth failed: %v", err)
		http.Error(w, "invalid signature", status)
		return
	}

	eventType := gogithub.WebHookType(r)
	if eventType == "" {
		http.Error(w, "missing event type", http.StatusBadRequest)
		return
	}
	internal.IncRequest(eventType)
	logger.Printf("received %s event", eventType)

	event, err := github.DecodeEvent(eventType, body)
	if err != nil {
		var unsupported *github.UnsupportedEventTypeError
		if errors.As(err, &unsupported) {
			internal.IncUnsupportedEvent(eventType)
			logger.Printf("unsupported event type %q", eventType)
			io.WriteString(w, "unsupported event: "+eventType)
			return
		}
		internal.IncDecodeFailure(eventType)
		logger.Printf("decode failed: %v", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if h.filters != nil && !h.filters.Allow(body) {
		internal.IncSuppressed("filtered")
		logger.Printf("event filtered: %s", eventType)
		io.WriteString(w, "event filtered")
		return
	}

	outcome := bridge.Map(event, h.mapper)
	if outcome.Suppressed() {
		internal.IncSuppressed(outcome.Reason)
		logger.Printf("suppressed: %s", outcome.Reason)
		io.WriteString(w, outcome.Reason)
		return
	}

	encoded, err := json.Marshal(outcome.Message)
	if err != nil {
		logger.Printf("encode message: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	notification := internal.Notification{
		Body:     encoded,
		Event:    eventType,
		Delivery: delivery,
	}
	if err := h.sink.Deliver(r.Context(), notification); err != nil {
		logger.Printf("delivery failed: %v", err)
		http.Error(w, "delivery failed", http.StatusInternalServerError)
		return
	}

	io.WriteString(w, "event handled successfully")
}
