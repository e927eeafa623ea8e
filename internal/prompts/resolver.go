package prompts

import (
	"regexp"
	"strings"
)

// RoleRedacted replaces a role token that starts a line of user-supplied text.
const RoleRedacted = "[role-redacted]:"

// Vars maps placeholder names to their values.
type Vars map[string]string

var (
	controlChars = regexp.MustCompile("[\x01-\x08\x0B\x0C\x0E-\x1F\x7F]")
	// Leading whitespace includes unicode spaces so that trimming never
	// exposes a new role token on a second pass.
	roleMarker  = regexp.MustCompile(`(?im)^[\s\p{Z}\x{85}]*(system|assistant|user|model)\s*:`)
	placeholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)
)

// Sanitize strips control characters from s and neutralizes lines that
// impersonate a conversational role. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\x00", "")
	s = controlChars.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = roleMarker.ReplaceAllString(s, RoleRedacted)
	return strings.TrimSpace(s)
}

// Interpolate replaces every {name} in tpl with the sanitized value of
// vars[name]. Missing variables resolve to "". Substituted values are not
// scanned again.
func Interpolate(tpl string, vars Vars) string {
	return placeholder.ReplaceAllStringFunc(tpl, func(m string) string {
		return Sanitize(vars[m[1:len(m)-1]])
	})
}

// Resolved is a prompt configuration with every placeholder substituted.
type Resolved struct {
	ID              ConfigID
	SystemPrompt    string
	Boundaries      []string
	Temperature     float32
	MaxOutputTokens int32
}

// SystemInstruction renders the prompt and its boundaries as the text sent to
// the model.
func (r Resolved) SystemInstruction() string {
	prompt := strings.TrimSpace(r.SystemPrompt)
	if len(r.Boundaries) == 0 {
		return prompt
	}

	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\nHard Boundaries:")
	for _, rule := range r.Boundaries {
		sb.WriteString("\n- ")
		sb.WriteString(rule)
	}
	return sb.String()
}

// Resolve substitutes vars into the configuration registered for id.
// An id outside the registry resolves to an empty prompt.
func Resolve(id ConfigID, vars Vars) Resolved {
	cfg, ok := registry[id]
	if !ok {
		return Resolved{ID: id}
	}

	boundaries := make([]string, len(cfg.Boundaries))
	for i, rule := range cfg.Boundaries {
		boundaries[i] = Interpolate(rule, vars)
	}

	return Resolved{
		ID:              id,
		SystemPrompt:    Interpolate(cfg.SystemPrompt, vars),
		Boundaries:      boundaries,
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
}

// ResolveString resolves a configuration named by an untrusted string.
func ResolveString(id string, vars Vars) (Resolved, error) {
	cid, err := ParseConfigID(id)
	if err != nil {
		return Resolved{}, err
	}
	return Resolve(cid, vars), nil
}
