package domain

import "strings"

// MarketingAngle is a creative theme a user can pick for generation.
type MarketingAngle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Canonical renders the angle as the string used for generation requests and
// placeholder keys.
func (a MarketingAngle) Canonical() string {
	title := CanonicalAngle(a.Title)
	desc := CanonicalAngle(a.Description)
	if desc == "" {
		return title
	}
	return title + ": " + desc
}

// CanonicalAngle trims an angle string and collapses inner whitespace so that
// keys built from different sources compare equal.
func CanonicalAngle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseAngle splits "Title: description" back into its parts.
func ParseAngle(s string) MarketingAngle {
	s = CanonicalAngle(s)
	title, desc, found := strings.Cut(s, ":")
	if !found {
		return MarketingAngle{Title: s}
	}
	return MarketingAngle{Title: strings.TrimSpace(title), Description: strings.TrimSpace(desc)}
}
