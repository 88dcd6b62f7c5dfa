// Package discord holds the outbound webhook message model and the
// pull-request embed renderer.
package discord

// Message is the body POSTed to a Discord webhook.
type Message struct {
	Content string  `json:"content"`
	Embeds  []Embed `json:"embeds"`
}

// Embed is one rich embed. Optional parts are pointers so an absent value
// is omitted from the JSON instead of serializing as an empty string.
type Embed struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	URL         string  `json:"url"`
	Color       uint32  `json:"color"`
	Fields      []Field `json:"fields"`
	Footer      *Footer `json:"footer,omitempty"`
	Author      *Author `json:"author,omitempty"`
}

// Field is a named embed field.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Footer is the embed footer line.
type Footer struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url"`
}

// Author is the embed author block.
type Author struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

// UserMention renders a clickable mention of a Discord user.
func UserMention(id string) string {
	return "<@" + id + ">"
}

// RoleMention renders a clickable mention of a Discord role.
func RoleMention(id string) string {
	return "<@&" + id + ">"
}
