package bulk

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MaxCaptionLength bounds captions in characters.
const MaxCaptionLength = 300

var captionPolicy = bluemonday.StrictPolicy()

// SanitizeCaption strips markup, trims surrounding space and truncates to
// MaxCaptionLength characters.
func SanitizeCaption(caption string) string {
	clean := html.UnescapeString(captionPolicy.Sanitize(caption))
	clean = strings.TrimSpace(clean)
	if r := []rune(clean); len(r) > MaxCaptionLength {
		clean = string(r[:MaxCaptionLength])
	}
	return clean
}
