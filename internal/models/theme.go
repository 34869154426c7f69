package models

// Layout names a profile page layout.
type Layout string

const (
	LayoutMinimal  Layout = "minimal"
	LayoutModern   Layout = "modern"
	LayoutCreative Layout = "creative"
)

// Theme is the visual configuration of a public profile page.
type Theme struct {
	BackgroundColor string `gorm:"size:16" json:"background_color"`
	TextColor       string `gorm:"size:16" json:"text_color"`
	ButtonColor     string `gorm:"size:16" json:"button_color"`
	FontFamily      string `gorm:"size:32" json:"font_family"`
	Layout          Layout `gorm:"size:16" json:"layout"`
}

// ThemePreset is a named, fixed starting point for a theme.
type ThemePreset struct {
	Name  string `json:"name"`
	Theme Theme  `json:"theme"`
}

// Fonts lists the font families a theme may use.
var Fonts = []string{"Prompt", "Kanit", "Sarabun", "Mitr"}

var presets = []ThemePreset{
	{Name: "Minimal", Theme: Theme{BackgroundColor: "#ffffff", TextColor: "#000000", ButtonColor: "#000000", FontFamily: "Prompt", Layout: LayoutMinimal}},
	{Name: "Modern", Theme: Theme{BackgroundColor: "#111827", TextColor: "#ffffff", ButtonColor: "#2563EB", FontFamily: "Prompt", Layout: LayoutModern}},
	{Name: "Creative", Theme: Theme{BackgroundColor: "#F3E8FF", TextColor: "#4C1D95", ButtonColor: "#8B5CF6", FontFamily: "Prompt", Layout: LayoutCreative}},
}

// ThemePresets returns the preset list in display order.
func ThemePresets() []ThemePreset {
	out := make([]ThemePreset, len(presets))
	copy(out, presets)
	return out
}

// PresetFor returns the preset theme for layout.
func PresetFor(layout Layout) (Theme, bool) {
	for _, p := range presets {
		if p.Theme.Layout == layout {
			return p.Theme, true
		}
	}
	return Theme{}, false
}

// DefaultTheme is applied to profiles saved without a theme.
func DefaultTheme() Theme {
	t, _ := PresetFor(LayoutMinimal)
	return t
}

// IsKnownLayout reports whether l is one of the supported layouts.
func IsKnownLayout(l Layout) bool {
	_, ok := PresetFor(l)
	return ok
}

// IsKnownFont reports whether f is an allowed font family.
func IsKnownFont(f string) bool {
	for _, v := range Fonts {
		if v == f {
			return true
		}
	}
	return false
}
