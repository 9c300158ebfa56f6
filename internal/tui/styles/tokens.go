package styles

// ThemeTokens defines the semantic color roles for the watch view. The four
// lifecycle roles color action state badges.
type ThemeTokens struct {
	Background string
	Panel      string
	Text       string
	TextMuted  string
	Border     string
	Accent     string
	Focus      string
	Success    string
	Warning    string
	Error      string
	Info       string

	Idle      string
	Scheduled string
	Running   string
	Pending   string
}

// roles returns every token keyed by role name.
func (t ThemeTokens) roles() map[string]string {
	return map[string]string{
		"background": t.Background,
		"panel":      t.Panel,
		"text":       t.Text,
		"text_muted": t.TextMuted,
		"border":     t.Border,
		"accent":     t.Accent,
		"focus":      t.Focus,
		"success":    t.Success,
		"warning":    t.Warning,
		"error":      t.Error,
		"info":       t.Info,
		"idle":       t.Idle,
		"scheduled":  t.Scheduled,
		"running":    t.Running,
		"pending":    t.Pending,
	}
}

// Theme bundles a palette with a name.
type Theme struct {
	Name   string
	Tokens ThemeTokens
}

// Themes lists available palettes by name.
var Themes = map[string]Theme{
	DefaultTheme.Name:      DefaultTheme,
	HighContrastTheme.Name: HighContrastTheme,
}

// ThemeByName returns the named palette, falling back to DefaultTheme.
func ThemeByName(name string) Theme {
	if theme, ok := Themes[name]; ok {
		return theme
	}
	return DefaultTheme
}
