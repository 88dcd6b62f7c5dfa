package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"prbridge/internal"
	"prbridge/pkg/bridge"
	"prbridge/pkg/discord"
)

const testSecret = "s3cr3t"

// stubSink records delivered notifications.
type stubSink struct {
	delivered []internal.Notification
	err       error
}

func (s *stubSink) Deliver(ctx context.Context, n internal.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, n)
	return nil
}

func (s *stubSink) Close() error { return nil }

func signBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func newRequest(t *testing.T, eventType string, body []byte) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	r.Header.Set("X-Hub-Signature-256", signBody(body))
	r.Header.Set("X-GitHub-Event", eventType)
	r.Header.Set("X-GitHub-Delivery", "d-123")
	return r
}

func newHandler(sink internal.Sink, mapper bridge.Config) *GitHubHandler {
	return NewGitHubHandler(testSecret, mapper, nil, sink, internal.NewLogger("test"), 1<<20)
}

const openedBody = `{
	"action": "opened",
	"sender": {"login": "alice", "html_url": "https://github.com/alice", "avatar_url": "https://a.example/alice.png"},
	"pull_request": {
		"number": 42,
		"html_url": "https://github.com/acme/widgets/pull/42",
		"title": "Fix bug",
		"state": "open",
		"user": {"login": "alice", "html_url": "https://github.com/alice", "avatar_url": "https://a.example/alice.png"},
		"draft": false,
		"additions": 5,
		"deletions": 2
	},
	"repository": {
		"full_name": "acme/widgets",
		"html_url": "https://github.com/acme/widgets",
		"owner": {"login": "acme", "html_url": "https://github.com/acme", "avatar_url": "https://a.example/acme.png"}
	}
}`

// TestHandlerDeliversOpened tests the happy path: a signed opened event
// produces exactly one outbound notification and a 200.
func TestHandlerDeliversOpened(t *testing.T) {
	sink := &stubSink{}
	h := newHandler(sink, bridge.Config{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newRequest(t, "pull_request", []byte(openedBody)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(sink.delivered) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(sink.delivered))
	}

	var msg discord.Message
	if err := json.Unmarshal(sink.delivered[0].Body, &msg); err != nil {
		t.Fatalf("decode delivered message: %v", err)
	}
	if msg.Content != "`alice` opened a pull request" {
		t.Fatalf("unexpected content: %q", msg.Content)
	}
	if sink.delivered[0].Event != "pull_request" || sink.delivered[0].Delivery != "d-123" {
		t.Fatalf("unexpected notification metadata: %+v", sink.delivered[0])
	}
	if got := w.Header().Get("X-Request-Id"); got != "d-123" {
		t.Fatalf("expected delivery id echoed, got %q", got)
	}
}

// TestHandlerTamperedBody tests that a body altered after signing gets a
// 401 and never reaches the decoder or the sink.
func TestHandlerTamperedBody(t *testing.T) {
	sink := &stubSink{}
	h := newHandler(sink, bridge.Config{})

	body := []byte(openedBody)
	r := newRequest(t, "pull_request", body)
	tampered := append([]byte(nil), body...)
	tampered[0] ^= 0x01
	r.Body = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(tampered)).Body

	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if len(sink.delivered) != 0 {
		t.Fatalf("expected no delivery")
	}
}

// TestHandlerMissingSignature tests that a request without a signature
// header is a 400.
func TestHandlerMissingSignature(t *testing.T) {
	h := newHandler(&stubSink{}, bridge.Config{})

	r := newRequest(t, "pull_request", []byte(openedBody))
	r.Header.Del("X-Hub-Signature-256")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// TestHandlerMalformedSignature tests that a signature header without the
// sha256 prefix is a 400, not a 401.
func TestHandlerMalformedSignature(t *testing.T) {
	h := newHandler(&stubSink{}, bridge.Config{})

	r := newRequest(t, "pull_request", []byte(openedBody))
	r.Header.Set("X-Hub-Signature-256", "sha1=deadbeef")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// TestHandlerMissingEventType tests that a verified request without an
// event type header is a 400.
func TestHandlerMissingEventType(t *testing.T) {
	h := newHandler(&stubSink{}, bridge.Config{})

	r := newRequest(t, "pull_request", []byte(openedBody))
	r.Header.Del("X-GitHub-Event")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// TestHandlerPing tests that a ping is a 200 suppression with no
// outbound call.
func TestHandlerPing(t *testing.T) {
	sink := &stubSink{}
	h := newHandler(sink, bridge.Config{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newRequest(t, "ping", []byte(`{"hook_id": 123, "zen": "test"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(sink.delivered) != 0 {
		t.Fatalf("expected no delivery for ping")
	}
}

// TestHandlerUnsupportedEventType tests that unknown event types are a
// benign 200 no-op.
func TestHandlerUnsupportedEventType(t *testing.T) {
	sink := &stubSink{}
	h := newHandler(sink, bridge.Config{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newRequest(t, "push", []byte(`{}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unsupported") {
		t.Fatalf("expected unsupported message, got %q", w.Body.String())
	}
	if len(sink.delivered) != 0 {
		t.Fatalf("expected no delivery")
	}
}

// TestHandlerMalformedPayload tests that a known event type with a
// payload missing required fields is a 400.
func TestHandlerMalformedPayload(t *testing.T) {
	h := newHandler(&stubSink{}, bridge.Config{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newRequest(t, "pull_request", []byte(`{"action": "opened"}`)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// TestHandlerSuppressedTeam tests that a review request for a team
// missing from the recipient table is a 200 suppression with a
// distinguishing body and no outbound call.
func TestHandlerSuppressedTeam(t *testing.T) {
	sink := &stubSink{}
	h := newHandler(sink, bridge.Config{})

	body := strings.Replace(
		openedBody,
		`"action": "opened",`,
		`"action": "review_requested", "requested_team": {"slug": "backend", "name": "Backend"},`,
		1,
	)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, newRequest(t, "pull_request", []byte(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "backend") {
		t.Fatalf("expected distinguishing body, got %q", w.Body.String())
	}
	if len(sink.delivered) != 0 {
		t.Fatalf("expected no delivery")
	}
}

// TestHandlerFiltered tests that a configured filter can suppress an
// otherwise deliverable event.
func TestHandlerFiltered(t *testing.T) {
	filters, err := internal.NewFilterEngine(internal.FilterConfig{
		Filters: []internal.Filter{{When: `action == "closed"`}},
		Logger:  internal.NewLogger("test"),
	})
	if err != nil {
		t.Fatalf("new filter engine: %v", err)
	}

	sink := &stubSink{}
	h := NewGitHubHandler(testSecret, bridge.Config{}, filters, sink, internal.NewLogger("test"), 1<<20)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newRequest(t, "pull_request", []byte(openedBody)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "filtered") {
		t.Fatalf("expected filtered body, got %q", w.Body.String())
	}
	if len(sink.delivered) != 0 {
		t.Fatalf("expected no delivery")
	}
}

// TestHandlerDeliveryFailure tests that a sink failure surfaces as a 500
// without a retry.
func TestHandlerDeliveryFailure(t *testing.T) {
	sink := &stubSink{err: errors.New("webhook down")}
	h := newHandler(sink, bridge.Config{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newRequest(t, "pull_request", []byte(openedBody)))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

// TestHandlerMethodNotAllowed tests that only POST is accepted.
func TestHandlerMethodNotAllowed(t *testing.T) {
	h := newHandler(&stubSink{}, bridge.Config{})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

// TestHandlerReviewRequestMention tests that a configured reviewer login
// is converted to a Discord mention in the delivered message.
func TestHandlerReviewRequestMention(t *testing.T) {
	sink := &stubSink{}
	h := newHandler(sink, bridge.Config{UserIDs: map[string]string{"bob": "111"}})

	body := strings.Replace(
		openedBody,
		`"action": "opened",`,
		`"action": "review_requested", "requested_reviewer": {"login": "bob", "html_url": "https://github.com/bob", "avatar_url": "https://a.example/bob.png"},`,
		1,
	)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, newRequest(t, "pull_request", []byte(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(sink.delivered) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(sink.delivered))
	}
	var msg discord.Message
	if err := json.Unmarshal(sink.delivered[0].Body, &msg); err != nil {
		t.Fatalf("decode delivered message: %v", err)
	}
	if msg.Content != "`alice` requested review from <@111>" {
		t.Fatalf("unexpected content: %q", msg.Content)
	}
}
