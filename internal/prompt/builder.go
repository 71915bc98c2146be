package prompt

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DescriptionPlaceholder marks where a vision-derived description is
// injected into a template for describe-mode runs.
const DescriptionPlaceholder = "{description}"

// Subject captures the jewelry piece a user wants rendered. Empty fields
// fall back to bracketed alternatives so each resolved prompt still
// varies across a batch.
type Subject struct {
	Piece    string
	Material string
	Style    string
	Extra    string
}

var defaultQualifiers = []string{
	"isometric view",
	"neutral studio lighting",
	"8k resolution",
	"macro photography",
}

// BuildTemplate composes a prompt template for the given subject. The
// output may contain bracket groups and is meant to be fed through
// Resolver.Resolve once per job.
func BuildTemplate(s Subject) string {
	titled := cases.Title(language.Und)

	piece := strings.TrimSpace(s.Piece)
	if piece == "" {
		piece = "[diamond ring|pendant necklace|tennis bracelet]"
	}
	material := strings.TrimSpace(s.Material)
	if material == "" {
		material = "[platinum|yellow gold|rose gold]"
	}
	style := strings.TrimSpace(s.Style)
	if style == "" {
		style = "[art deco|minimalist|baroque]"
	}

	parts := []string{
		"A high jewelry " + piece,
		material + " setting",
		titled.String(style) + " style",
	}
	if extra := strings.TrimSpace(s.Extra); extra != "" {
		parts = append(parts, extra)
	}
	parts = append(parts, defaultQualifiers...)
	return strings.Join(parts, ", ")
}

// InjectDescription substitutes a vision description into the template.
// When the template carries no placeholder the description is prepended
// so describe-mode runs never silently drop it.
func InjectDescription(template, description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return template
	}
	if strings.Contains(template, DescriptionPlaceholder) {
		return strings.ReplaceAll(template, DescriptionPlaceholder, description)
	}
	return description + ", " + template
}
