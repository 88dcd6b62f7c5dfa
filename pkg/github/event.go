package github

import (
	"encoding/json"
	"fmt"
)

// Event type names the decoder accepts.
const (
	EventTypePing        = "ping"
	EventTypePullRequest = "pull_request"
)

// Event is one decoded webhook event. The set of implementations is
// closed: PingEvent and PullRequestEvent. Anything else fails the decode
// instead of being represented as data.
type Event interface {
	EventType() string
}

// PingEvent is the liveness check GitHub sends when a webhook is created.
type PingEvent struct {
	HookID uint64
	Zen    string
}

func (PingEvent) EventType() string { return EventTypePing }

// PullRequestEvent is a pull_request lifecycle event. Exactly one of
// RequestedReviewer and RequestedTeam is set on review_requested actions;
// both are nil otherwise.
type PullRequestEvent struct {
	Action            PullRequestAction
	Sender            User
	PullRequest       PullRequest
	RequestedReviewer *User
	RequestedTeam     *Team
	Repository        Repository
}

func (PullRequestEvent) EventType() string { return EventTypePullRequest }

// UnsupportedEventTypeError reports an event type outside the closed set.
// Callers treat it as a benign no-op, not a failure.
type UnsupportedEventTypeError struct {
	Type string
}

func (e *UnsupportedEventTypeError) Error() string {
	return fmt.Sprintf("unsupported event type %q", e.Type)
}

// MalformedPayloadError reports a payload that does not match the shape
// required by its (known) event type.
type MalformedPayloadError struct {
	Type string
	Err  error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed %s payload: %v", e.Type, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// DecodeEvent decodes a raw payload into the event variant selected by
// the event type name. Unknown fields are ignored; missing required
// fields fail the decode. The function is pure: identical input always
// yields an identical event or error.
func DecodeEvent(eventType string, payload []byte) (Event, error) {
	switch eventType {
	case EventTypePing:
		return decodePing(payload)
	case EventTypePullRequest:
		return decodePullRequest(payload)
	default:
		return nil, &UnsupportedEventTypeError{Type: eventType}
	}
}

func decodePing(payload []byte) (Event, error) {
	var wire struct {
		HookID *uint64 `json:"hook_id"`
		Zen    *string `json:"zen"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, &MalformedPayloadError{Type: EventTypePing, Err: err}
	}
	if wire.HookID == nil {
		return nil, malformed(EventTypePing, "hook_id")
	}
	if wire.Zen == nil {
		return nil, malformed(EventTypePing, "zen")
	}
	return PingEvent{HookID: *wire.HookID, Zen: *wire.Zen}, nil
}

func decodePullRequest(payload []byte) (Event, error) {
	var wire struct {
		Action            *string          `json:"action"`
		Sender            *wireUser        `json:"sender"`
		PullRequest       *wirePullRequest `json:"pull_request"`
		RequestedReviewer *wireUser        `json:"requested_reviewer"`
		RequestedTeam     *wireTeam        `json:"requested_team"`
		Repository        *wireRepository  `json:"repository"`
	}
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, &MalformedPayloadError{Type: EventTypePullRequest, Err: err}
	}

	if wire.Action == nil {
		return nil, malformed(EventTypePullRequest, "action")
	}
	action := PullRequestAction(*wire.Action)
	if !knownActions[action] {
		return nil, &MalformedPayloadError{
			Type: EventTypePullRequest,
			Err:  fmt.Errorf("unknown action %q", *wire.Action),
		}
	}

	sender, err := wire.Sender.toUser("sender")
	if err != nil {
		return nil, err
	}
	pr, err := wire.PullRequest.toPullRequest("pull_request")
	if err != nil {
		return nil, err
	}
	repo, err := wire.Repository.toRepository("repository")
	if err != nil {
		return nil, err
	}

	event := PullRequestEvent{
		Action:      action,
		Sender:      sender,
		PullRequest: pr,
		Repository:  repo,
	}
	if wire.RequestedReviewer != nil {
		reviewer, err := wire.RequestedReviewer.toUser("requested_reviewer")
		if err != nil {
			return nil, err
		}
		event.RequestedReviewer = &reviewer
	}
	if wire.RequestedTeam != nil {
		team, err := wire.RequestedTeam.toTeam("requested_team")
		if err != nil {
			return nil, err
		}
		event.RequestedTeam = &team
	}
	return event, nil
}

func malformed(eventType, field string) error {
	return &MalformedPayloadError{
		Type: eventType,
		Err:  fmt.Errorf("missing field %q", field),
	}
}

type wireUser struct {
	Login     *string `json:"login"`
	Name      *string `json:"name"`
	HTMLURL   *string `json:"html_url"`
	AvatarURL *string `json:"avatar_url"`
}

func (w *wireUser) toUser(path string) (User, error) {
	if w == nil {
		return User{}, malformed(EventTypePullRequest, path)
	}
	switch {
	case w.Login == nil:
		return User{}, malformed(EventTypePullRequest, path+".login")
	case w.HTMLURL == nil:
		return User{}, malformed(EventTypePullRequest, path+".html_url")
	case w.AvatarURL == nil:
		return User{}, malformed(EventTypePullRequest, path+".avatar_url")
	}
	return User{
		Login:     *w.Login,
		Name:      w.Name,
		HTMLURL:   *w.HTMLURL,
		AvatarURL: *w.AvatarURL,
	}, nil
}

type wireTeam struct {
	Slug *string `json:"slug"`
	Name *string `json:"name"`
}

func (w *wireTeam) toTeam(path string) (Team, error) {
	if w == nil {
		return Team{}, malformed(EventTypePullRequest, path)
	}
	switch {
	case w.Slug == nil:
		return Team{}, malformed(EventTypePullRequest, path+".slug")
	case w.Name == nil:
		return Team{}, malformed(EventTypePullRequest, path+".name")
	}
	return Team{Slug: *w.Slug, Name: *w.Name}, nil
}

type wireRepository struct {
	FullName *string   `json:"full_name"`
	HTMLURL  *string   `json:"html_url"`
	Owner    *wireUser `json:"owner"`
}

func (w *wireRepository) toRepository(path string) (Repository, error) {
	if w == nil {
		return Repository{}, malformed(EventTypePullRequest, path)
	}
	switch {
	case w.FullName == nil:
		return Repository{}, malformed(EventTypePullRequest, path+".full_name")
	case w.HTMLURL == nil:
		return Repository{}, malformed(EventTypePullRequest, path+".html_url")
	}
	owner, err := w.Owner.toUser(path + ".owner")
	if err != nil {
		return Repository{}, err
	}
	return Repository{
		FullName: *w.FullName,
		HTMLURL:  *w.HTMLURL,
		Owner:    owner,
	}, nil
}

type wirePullRequest struct {
	Number    *uint64   `json:"number"`
	HTMLURL   *string   `json:"html_url"`
	Title     *string   `json:"title"`
	State     *string   `json:"state"`
	User      *wireUser `json:"user"`
	Body      *string   `json:"body"`
	Draft     *bool     `json:"draft"`
	Merged    *bool     `json:"merged"`
	Additions *uint64   `json:"additions"`
	Deletions *uint64   `json:"deletions"`
}

func (w *wirePullRequest) toPullRequest(path string) (PullRequest, error) {
	if w == nil {
		return PullRequest{}, malformed(EventTypePullRequest, path)
	}
	switch {
	case w.Number == nil:
		return PullRequest{}, malformed(EventTypePullRequest, path+".number")
	case w.HTMLURL == nil:
		return PullRequest{}, malformed(EventTypePullRequest, path+".html_url")
	case w.Title == nil:
		return PullRequest{}, malformed(EventTypePullRequest, path+".title")
	case w.State == nil:
		return PullRequest{}, malformed(EventTypePullRequest, path+".state")
	case w.Draft == nil:
		return PullRequest{}, malformed(EventTypePullRequest, path+".draft")
	case w.Additions == nil:
		return PullRequest{}, malformed(EventTypePullRequest, path+".additions")
	case w.Deletions == nil:
		return PullRequest{}, malformed(EventTypePullRequest, path+".deletions")
	}

	state := PullRequestState(*w.State)
	if state != StateOpen && state != StateClosed {
		return PullRequest{}, &MalformedPayloadError{
			Type: EventTypePullRequest,
			Err:  fmt.Errorf("unknown state %q", *w.State),
		}
	}
	user, err := w.User.toUser(path + ".user")
	if err != nil {
		return PullRequest{}, err
	}

	return PullRequest{
		Number:    *w.Number,
		HTMLURL:   *w.HTMLURL,
		Title:     *w.Title,
		State:     state,
		User:      user,
		Body:      w.Body,
		Draft:     *w.Draft,
		Merged:    w.Merged,
		Additions: *w.Additions,
		Deletions: *w.Deletions,
	}, nil
}
