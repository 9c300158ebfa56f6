package styles

// DefaultTheme is a dim slate palette; running actions are the brightest row.
var DefaultTheme = Theme{
	Name: "default",
	Tokens: ThemeTokens{
		Background: "#101318",
		Panel:      "#171B22",
		Text:       "#D8DEE9",
		TextMuted:  "#7B8494",
		Border:     "#2A3140",
		Accent:     "#88C0D0",
		Focus:      "#EBCB8B",
		Success:    "#A3BE8C",
		Warning:    "#D08770",
		Error:      "#BF616A",
		Info:       "#81A1C1",

		Idle:      "#5C6370",
		Scheduled: "#81A1C1",
		Running:   "#A3BE8C",
		Pending:   "#EBCB8B",
	},
}

// HighContrastTheme uses pure black and saturated state colors.
var HighContrastTheme = Theme{
	Name: "high-contrast",
	Tokens: ThemeTokens{
		Background: "#000000",
		Panel:      "#000000",
		Text:       "#FFFFFF",
		TextMuted:  "#D0D0D0",
		Border:     "#FFFFFF",
		Accent:     "#00E5FF",
		Focus:      "#FFFF00",
		Success:    "#00FF00",
		Warning:    "#FF9900",
		Error:      "#FF3333",
		Info:       "#33CCFF",

		Idle:      "#B0B0B0",
		Scheduled: "#33CCFF",
		Running:   "#00FF00",
		Pending:   "#FFFF00",
	},
}
