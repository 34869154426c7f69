package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"zeelink/internal/models"
)

// MaxLinks bounds the link list of one profile.
const MaxLinks = 20

// MaxTags bounds the tag list of one profile.
const MaxTags = 5

var hexColorRegex = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// reservedRoutes are top-level paths the web app and API own.
var reservedRoutes = map[string]struct{}{
	"admin":     {},
	"api":       {},
	"auth":      {},
	"dashboard": {},
	"explore":   {},
	"health":    {},
	"login":     {},
	"logout":    {},
	"map":       {},
	"media":     {},
	"metrics":   {},
	"p":         {},
	"register":  {},
	"settings":  {},
	"signup":    {},
	"static":    {},
	"vote":      {},
}

// IsReservedRoute reports whether name collides with an application route.
func IsReservedRoute(name string) bool {
	_, ok := reservedRoutes[strings.ToLower(name)]
	return ok
}

// ValidateBio enforces the bio length limit in runes, ignoring surrounding
// whitespace.
func ValidateBio(bio string) error {
	if utf8.RuneCountInString(strings.TrimSpace(bio)) > models.MaxBioLength {
		return fmt.Errorf("bio must not exceed %d characters", models.MaxBioLength)
	}
	return nil
}

// ValidateTags checks tags against the allowed set.
func ValidateTags(tags []string) error {
	if len(tags) > MaxTags {
		return fmt.Errorf("at most %d tags are allowed", MaxTags)
	}
	for _, tag := range tags {
		if !models.IsKnownTag(tag) {
			return fmt.Errorf("unknown tag %q", tag)
		}
	}
	return nil
}

// ValidateLinkURL accepts absolute http(s) URLs with a host.
func ValidateLinkURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	return nil
}

// ValidateLinks checks every link of a profile.
func ValidateLinks(links []models.Link) error {
	if len(links) > MaxLinks {
		return fmt.Errorf("at most %d links are allowed", MaxLinks)
	}
	for i, l := range links {
		if strings.TrimSpace(l.Title) == "" {
			return fmt.Errorf("link %d: title is required", i+1)
		}
		if err := ValidateLinkURL(l.URL); err != nil {
			return fmt.Errorf("link %d: %w", i+1, err)
		}
	}
	return nil
}

// ValidateTheme checks layout, font and colors.
func ValidateTheme(theme models.Theme) error {
	if !models.IsKnownLayout(theme.Layout) {
		return fmt.Errorf("unknown layout %q", theme.Layout)
	}
	if !models.IsKnownFont(theme.FontFamily) {
		return fmt.Errorf("unknown font %q", theme.FontFamily)
	}
	for field, color := range map[string]string{
		"background_color": theme.BackgroundColor,
		"text_color":       theme.TextColor,
		"button_color":     theme.ButtonColor,
	} {
		if !hexColorRegex.MatchString(color) {
			return fmt.Errorf("%s must be a hex color", field)
		}
	}
	return nil
}

// ValidateQuestionText checks a board submission before moderation.
func ValidateQuestionText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("question text is required")
	}
	if utf8.RuneCountInString(text) > models.MaxQuestionLength {
		return fmt.Errorf("question must not exceed %d characters", models.MaxQuestionLength)
	}
	return nil
}

// ValidatePopup checks an admin-authored popup.
func ValidatePopup(p models.Popup) error {
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("popup title is required")
	}
	if !models.IsKnownFrequency(p.Frequency) {
		return fmt.Errorf("unknown popup frequency %q", p.Frequency)
	}
	if p.LinkURL != "" {
		if err := ValidateLinkURL(p.LinkURL); err != nil {
			return err
		}
	}
	if p.ImageURL != "" {
		if err := ValidateLinkURL(p.ImageURL); err != nil {
			return err
		}
	}
	return nil
}
