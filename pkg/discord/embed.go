package discord

import (
	"fmt"

	"prbridge/pkg/github"
)

// Embed colors, matching GitHub's pull request state palette. Merged wins
// over the open/draft/closed rule.
const (
	ColorMerged uint32 = 0x8957e5
	ColorDraft  uint32 = 0x6e7681
	ColorOpen   uint32 = 0x238636
	ColorClosed uint32 = 0xda3633
)

// EmbedFromPR renders a pull request as a single rich embed: title with
// the PR number, the body verbatim as description, addition/deletion
// counts as inline fields, the author block, and a repository footer.
func EmbedFromPR(pr github.PullRequest, repo github.Repository) Embed {
	var color uint32
	switch {
	case pr.Merged != nil && *pr.Merged:
		color = ColorMerged
	case pr.State == github.StateOpen && pr.Draft:
		color = ColorDraft
	case pr.State == github.StateOpen:
		color = ColorOpen
	default:
		color = ColorClosed
	}

	return Embed{
		Title:       fmt.Sprintf("%s #%d", pr.Title, pr.Number),
		Description: pr.Body,
		URL:         pr.HTMLURL,
		Color:       color,
		Fields: []Field{
			{Name: "Additions", Value: fmt.Sprintf("**`+%d`**", pr.Additions), Inline: true},
			{Name: "Deletions", Value: fmt.Sprintf("**`-%d`**", pr.Deletions), Inline: true},
		},
		Author: &Author{
			Name:    authorName(pr.User),
			URL:     pr.User.HTMLURL,
			IconURL: pr.User.AvatarURL,
		},
		Footer: &Footer{
			Text:    repo.FullName,
			IconURL: repo.Owner.AvatarURL,
		},
	}
}

func authorName(user github.User) string {
	if user.Name != nil && *user.Name != "" {
		return fmt.Sprintf("%s (@%s)", *user.Name, user.Login)
	}
	return "@" + user.Login
}
