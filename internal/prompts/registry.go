// Package prompts holds the prompt configurations used for generation and
// resolves them against per-request variables.
//
// Configurations are identified by the closed ConfigID enum. String identifiers
// coming from requests are converted with ParseConfigID, which is the only place
// an unknown identifier can appear.
package prompts

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

// ErrInvalidPromptConfig is returned for identifiers outside the registry.
var ErrInvalidPromptConfig = errors.New("invalid prompt config")

// ConfigID identifies a prompt configuration.
type ConfigID string

const (
	ReaderChat      ConfigID = "readerChat"
	Synthesis       ConfigID = "synthesis"
	Simplify        ConfigID = "simplify"
	Translate       ConfigID = "translate"
	Extract         ConfigID = "extract"
	WriterDraft     ConfigID = "writerDraft"
	WriterCitations ConfigID = "writerCitations"
	AgentAdvaita    ConfigID = "agentAdvaita"
	AgentYoga       ConfigID = "agentYoga"
	AgentEtymology  ConfigID = "agentEtymology"
	AgentTantra     ConfigID = "agentTantra"
	AgentSanatan    ConfigID = "agentSanatan"
)

var allIDs = []ConfigID{
	ReaderChat,
	Synthesis,
	Simplify,
	Translate,
	Extract,
	WriterDraft,
	WriterCitations,
	AgentAdvaita,
	AgentYoga,
	AgentEtymology,
	AgentTantra,
	AgentSanatan,
}

// String returns the string representation of the config id.
func (id ConfigID) String() string {
	return string(id)
}

// IDs returns every registered config id in declaration order.
func IDs() []ConfigID {
	out := make([]ConfigID, len(allIDs))
	copy(out, allIDs)
	return out
}

// ParseConfigID converts an untrusted identifier into a ConfigID.
func ParseConfigID(s string) (ConfigID, error) {
	id := ConfigID(s)
	if _, ok := registry[id]; !ok {
		return "", fmt.Errorf("%w: unknown prompt config %q", ErrInvalidPromptConfig, s)
	}
	return id, nil
}

// agents maps chat persona keys to their configs.
var agents = map[string]ConfigID{
	"advaita":   AgentAdvaita,
	"yoga":      AgentYoga,
	"etymology": AgentEtymology,
	"tantra":    AgentTantra,
	"sanatan":   AgentSanatan,
}

// AgentConfigID returns the config for a chat persona key.
func AgentConfigID(agent string) (ConfigID, bool) {
	id, ok := agents[agent]
	return id, ok
}

// Config is an immutable prompt configuration.
type Config struct {
	ID              ConfigID
	Name            string
	SystemPrompt    string
	Boundaries      []string
	Temperature     float32
	MaxOutputTokens int32
}

type templateFile struct {
	DefaultBoundaries []string                 `yaml:"default_boundaries"`
	Configs           map[string]templateEntry `yaml:"configs"`
}

type templateEntry struct {
	Name              string   `yaml:"name"`
	SystemPrompt      string   `yaml:"system_prompt"`
	Boundaries        []string `yaml:"boundaries"`
	DefaultBoundaries bool     `yaml:"default_boundaries"`
	Temperature       float32  `yaml:"temperature"`
	MaxOutputTokens   int32    `yaml:"max_output_tokens"`
}

var registry = mustLoadRegistry(templatesYAML)

func mustLoadRegistry(data []byte) map[ConfigID]Config {
	reg, err := loadRegistry(data)
	if err != nil {
		panic(fmt.Sprintf("prompts: %v", err))
	}
	return reg
}

// loadRegistry parses the template file and checks that it covers exactly the
// declared ids.
func loadRegistry(data []byte) (map[ConfigID]Config, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	known := make(map[ConfigID]bool, len(allIDs))
	for _, id := range allIDs {
		known[id] = true
	}

	reg := make(map[ConfigID]Config, len(file.Configs))
	for key, entry := range file.Configs {
		id := ConfigID(key)
		if !known[id] {
			return nil, fmt.Errorf("template %q has no ConfigID", key)
		}
		if strings.TrimSpace(entry.SystemPrompt) == "" {
			return nil, fmt.Errorf("template %q has an empty system prompt", key)
		}

		var boundaries []string
		if entry.DefaultBoundaries {
			boundaries = append(boundaries, file.DefaultBoundaries...)
		}
		boundaries = append(boundaries, entry.Boundaries...)

		reg[id] = Config{
			ID:              id,
			Name:            entry.Name,
			SystemPrompt:    strings.TrimSpace(entry.SystemPrompt),
			Boundaries:      boundaries,
			Temperature:     entry.Temperature,
			MaxOutputTokens: entry.MaxOutputTokens,
		}
	}

	for _, id := range allIDs {
		if _, ok := reg[id]; !ok {
			return nil, fmt.Errorf("missing template for %q", id)
		}
	}
	return reg, nil
}

// Lookup returns the raw configuration for id.
func Lookup(id ConfigID) (Config, bool) {
	cfg, ok := registry[id]
	if !ok {
		return Config{}, false
	}
	cfg.Boundaries = append([]string(nil), cfg.Boundaries...)
	return cfg, true
}
