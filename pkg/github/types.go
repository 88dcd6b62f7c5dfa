// Package github holds the typed subset of the GitHub webhook surface the
// bridge understands: signature verification and the pull-request event
// model.
package github

// User is a GitHub account as it appears in webhook payloads.
type User struct {
	Login     string
	Name      *string
	HTMLURL   string
	AvatarURL string
}

// DisplayName returns the user's display name, falling back to the login
// in backquotes so an unset name never renders as an empty string.
func (u User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return "`" + u.Login + "`"
}

// Team is a GitHub team requested for review.
type Team struct {
	Slug string
	Name string
}

// Repository is the repository an event originated from.
type Repository struct {
	FullName string
	HTMLURL  string
	Owner    User
}

// PullRequestAction is the action field of a pull_request event. The set
// is closed; decoding rejects anything else.
type PullRequestAction string

const (
	ActionOpened               PullRequestAction = "opened"
	ActionEdited               PullRequestAction = "edited"
	ActionClosed               PullRequestAction = "closed"
	ActionReopened             PullRequestAction = "reopened"
	ActionAssigned             PullRequestAction = "assigned"
	ActionUnassigned           PullRequestAction = "unassigned"
	ActionReviewRequested      PullRequestAction = "review_requested"
	ActionReviewRequestRemoved PullRequestAction = "review_request_removed"
	ActionLabeled              PullRequestAction = "labeled"
	ActionUnlabeled            PullRequestAction = "unlabeled"
	ActionSynchronize          PullRequestAction = "synchronize"
)

var knownActions = map[PullRequestAction]bool{
	ActionOpened:               true,
	ActionEdited:               true,
	ActionClosed:               true,
	ActionReopened:             true,
	ActionAssigned:             true,
	ActionUnassigned:           true,
	ActionReviewRequested:      true,
	ActionReviewRequestRemoved: true,
	ActionLabeled:              true,
	ActionUnlabeled:            true,
	ActionSynchronize:          true,
}

// PullRequestState is the open/closed state of a pull request.
type PullRequestState string

const (
	StateOpen   PullRequestState = "open"
	StateClosed PullRequestState = "closed"
)

// PullRequest is the pull request described by an event. Merged is only
// present on pull_request payloads; when true the state is closed.
type PullRequest struct {
	Number    uint64
	HTMLURL   string
	Title     string
	State     PullRequestState
	User      User
	Body      *string
	Draft     bool
	Merged    *bool
	Additions uint64
	Deletions uint64
}
