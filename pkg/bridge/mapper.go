// Package bridge maps decoded GitHub events to outbound Discord messages.
// The mapping is a pure decision table; everything it needs arrives as an
// argument and nothing is mutated.
package bridge

import (
	"fmt"

	"prbridge/pkg/discord"
	"prbridge/pkg/github"
)

// Config carries the per-deployment pieces the mapper consults: the
// recipient tables and the optional reviewer team restriction.
type Config struct {
	// UserIDs maps a GitHub login to a Discord user id.
	UserIDs map[string]string
	// RoleIDs maps a GitHub team slug to a Discord role id.
	RoleIDs map[string]string
	// ReviewerTeam, when set, suppresses review requests for any other
	// team before the role table is consulted.
	ReviewerTeam string
}

// Outcome is the mapper's decision for one event: either a message to
// send, or a suppression with its reason. Suppressions are deliberate
// policy results, not failures.
type Outcome struct {
	Message *discord.Message
	Reason  string
}

// Send wraps a message in an Outcome.
func Send(msg discord.Message) Outcome {
	return Outcome{Message: &msg}
}

// Suppress produces a no-notification outcome with a reason for the
// boundary response.
func Suppress(reason string) Outcome {
	return Outcome{Reason: reason}
}

// Suppressed reports whether the outcome carries no message.
func (o Outcome) Suppressed() bool {
	return o.Message == nil
}

// Map decides whether an event produces a notification. Identical inputs
// always yield an identical outcome.
func Map(event github.Event, cfg Config) Outcome {
	switch ev := event.(type) {
	case github.PingEvent:
		return Suppress("liveness check")
	case github.PullRequestEvent:
		return mapPullRequest(ev, cfg)
	default:
		return Suppress("event not handled")
	}
}

func mapPullRequest(ev github.PullRequestEvent, cfg Config) Outcome {
	sender := ev.Sender.DisplayName()
	switch ev.Action {
	case github.ActionOpened:
		return announce(sender+" opened a pull request", ev)
	case github.ActionReopened:
		return announce(sender+" reopened a pull request", ev)
	case github.ActionClosed:
		verb := "closed"
		if ev.PullRequest.Merged != nil && *ev.PullRequest.Merged {
			verb = "merged"
		}
		return announce(fmt.Sprintf("%s %s a pull request", sender, verb), ev)
	case github.ActionReviewRequested:
		return mapReviewRequest(ev, cfg, sender)
	default:
		return Suppress("action not handled")
	}
}

// mapReviewRequest resolves the requested reviewer to a mention. The user
// and team cases are deliberately asymmetric: an unconfigured user is
// still announced by name, while an unconfigured team suppresses the
// notification entirely, because team requests double as a routing filter
// for the deployment.
func mapReviewRequest(ev github.PullRequestEvent, cfg Config, sender string) Outcome {
	var ping string
	switch {
	case ev.RequestedReviewer != nil:
		reviewer := *ev.RequestedReviewer
		if id, ok := cfg.UserIDs[reviewer.Login]; ok {
			ping = discord.UserMention(id)
		} else if reviewer.Name != nil && *reviewer.Name != "" {
			ping = fmt.Sprintf("%s (`%s`)", *reviewer.Name, reviewer.Login)
		} else {
			ping = "`" + reviewer.Login + "`"
		}
	case ev.RequestedTeam != nil:
		team := *ev.RequestedTeam
		if cfg.ReviewerTeam != "" && team.Slug != cfg.ReviewerTeam {
			return Suppress("review requested from another team")
		}
		id, ok := cfg.RoleIDs[team.Slug]
		if !ok {
			return Suppress("no role configured for team " + team.Slug)
		}
		ping = discord.RoleMention(id)
	default:
		return Suppress("no reviewer specified")
	}
	return announce(fmt.Sprintf("%s requested review from %s", sender, ping), ev)
}

func announce(content string, ev github.PullRequestEvent) Outcome {
	return Send(discord.Message{
		Content: content,
		Embeds:  []discord.Embed{discord.EmbedFromPR(ev.PullRequest, ev.Repository)},
	})
}
