package adgen

import (
	"fmt"
	"strings"

	"adstudio/internal/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Flags understood by BuildPrompt and the synthetic generator.
const (
	FlagStory     = "story"
	FlagLandscape = "landscape"
	FlagNoText    = "no_text"
	FlagBoldCTA   = "bold_cta"
)

// BuildPrompt turns a brief into a text-to-image instruction. Variations of
// the same angle differ only in the composition hint.
func BuildPrompt(b Brief) string {
	angle := domain.ParseAngle(b.Angle)
	tag := language.Make(b.Language)
	if tag == language.Und {
		tag = language.English
	}
	titleCase := cases.Title(tag)

	var lines []string
	lines = append(lines, fmt.Sprintf("Design a static social media ad built around the angle %q.", titleCase.String(angle.Title)))
	if desc := strings.TrimSpace(angle.Description); desc != "" {
		lines = append(lines, "Angle detail: "+desc+".")
	}
	if avatar := strings.TrimSpace(b.Avatar); avatar != "" {
		lines = append(lines, "Target customer: "+avatar+".")
	}
	if b.Product != nil && len(b.Product.Data) > 0 {
		lines = append(lines, "Feature the uploaded product photo as the hero. Keep its shape, label and colours intact.")
	}
	if len(b.ReferenceImageIDs) > 0 {
		lines = append(lines, fmt.Sprintf("Match the look of %d reference image(s) from the brand library.", len(b.ReferenceImageIDs)))
	}

	switch {
	case b.Flags[FlagStory]:
		lines = append(lines, "Format: vertical 9:16 story.")
	case b.Flags[FlagLandscape]:
		lines = append(lines, "Format: landscape 16:9.")
	default:
		lines = append(lines, "Format: square 1:1 feed post.")
	}

	if b.Flags[FlagNoText] {
		lines = append(lines, "Do not render any text on the image.")
	} else {
		lines = append(lines, fmt.Sprintf("Write all on-image copy in %s.", display.English.Languages().Name(tag)))
		if b.Flags[FlagBoldCTA] {
			lines = append(lines, "Include a bold, high-contrast call to action button.")
		}
	}
	lines = append(lines, compositionHint(b.Variation))
	return strings.Join(lines, "\n")
}

func compositionHint(variation int) string {
	hints := []string{
		"Composition: centered hero with generous negative space.",
		"Composition: lifestyle scene showing the product in use.",
		"Composition: split layout with headline on one side and product on the other.",
		"Composition: close-up detail shot with a minimal backdrop.",
	}
	if variation < 1 {
		variation = 1
	}
	return hints[(variation-1)%len(hints)]
}

// Dimensions maps layout flags to pixel sizes for a square edge of size.
func Dimensions(flags map[string]bool, size int) (int, int) {
	if size <= 0 {
		size = 1080
	}
	switch {
	case flags[FlagStory]:
		return size, size * 16 / 9
	case flags[FlagLandscape]:
		return size * 16 / 9, size
	default:
		return size, size
	}
}
