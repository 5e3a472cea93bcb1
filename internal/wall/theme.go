package wall

// Theme is a wall background.
type Theme struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Background string `json:"background"`
	Text       string `json:"text"`
}

// DefaultTheme is used for walls that never picked one.
const DefaultTheme = "retro"

var themes = []Theme{
	{ID: "retro", Name: "Retro Cream", Background: "#f2ece1", Text: "#1f2937"},
	{ID: "minimal", Name: "Pure White", Background: "#f9fafb", Text: "#111827"},
	{ID: "concrete", Name: "Concrete", Background: "#d6d3d1", Text: "#1c1917"},
	{ID: "linen", Name: "Linen", Background: "#f7f5f0", Text: "#292524"},
	{ID: "moss", Name: "Sage Green", Background: "#e4e8e1", Text: "#1f2937"},
	{ID: "sky", Name: "Airy Blue", Background: "#f0f8ff", Text: "#1e293b"},
	{ID: "sand", Name: "Warm Sand", Background: "#ebe5ce", Text: "#78350f"},
	{ID: "blush", Name: "Soft Blush", Background: "#fff0f5", Text: "#881337"},
	{ID: "dark", Name: "Darkroom", Background: "#18181b", Text: "#f4f4f5"},
	{ID: "gradient", Name: "Aura", Background: "linear-gradient(to top right, #e0e7ff, #f3e8ff, #fce7f3)", Text: "#1e293b"},
}

// Themes lists the available themes in display order.
func Themes() []Theme {
	out := make([]Theme, len(themes))
	copy(out, themes)
	return out
}

// LookupTheme finds a theme by ID.
func LookupTheme(id string) (Theme, bool) {
	for _, t := range themes {
		if t.ID == id {
			return t, true
		}
	}
	return Theme{}, false
}
