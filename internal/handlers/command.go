package handlers

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// ErrInvalidCommand reports an exec command that is not a valid template.
var ErrInvalidCommand = errors.New("invalid command template")

// commandTemplate is an exec command with optional {{.action}}-style fields.
//
// Available fields: action, callback, state, parent, plus every key in
// HandlerConfig.Vars. Unknown keys render empty; use {{default "x" .key}}
// for a fallback.
type commandTemplate struct {
	raw    string
	parsed *template.Template
}

func parseCommand(name, command string) (*commandTemplate, error) {
	tmpl := &commandTemplate{raw: command}
	if !strings.Contains(command, "{{") {
		return tmpl, nil
	}

	parsed, err := template.New(name).
		Funcs(template.FuncMap{"default": defaultValue}).
		Option("missingkey=zero").
		Parse(command)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	tmpl.parsed = parsed
	return tmpl, nil
}

func (c *commandTemplate) render(vars map[string]string) (string, error) {
	if c.parsed == nil {
		return c.raw, nil
	}

	var out strings.Builder
	if err := c.parsed.Execute(&out, vars); err != nil {
		return "", fmt.Errorf("render command: %w", err)
	}
	return out.String(), nil
}

func defaultValue(def string, value any) string {
	if value == nil {
		return def
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	default:
		text := strings.TrimSpace(fmt.Sprint(v))
		if text == "" {
			return def
		}
		return text
	}
}
