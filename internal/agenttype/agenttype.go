// Package agenttype parses the agent-type grammar used to route sub-tasks:
//
//	agent-type := backend ':' name | '@' name | name
//	backend    := 'copilot' | 'claude' | 'cli' | 'cloud'
//
// It is a pure function plus an injectable registry for custom slash
// commands, grounded in the teacher's small hand-written parsers
// (internal/parser) rather than a regex/parser-combinator library, since
// the grammar is three alternatives wide.
package agenttype

import (
	"fmt"
	"strings"

	"github.com/harrison/orchestrator/internal/models"
)

const defaultBackend = "copilot"

var validBackends = map[string]bool{
	"copilot": true,
	"claude":  true,
	"cli":     true,
	"cloud":   true,
}

// reservedSlashCommands maps a built-in agent name to its default Claude
// slash command.
var reservedSlashCommands = map[string]string{
	"agent":                 "/agent",
	"architect":             "/architect",
	"reviewer":              "/review",
	"planner":               "/plan",
	"repository-researcher": "/repository-researcher",
}

// Registry holds custom slash-command overrides contributed by definition
// frontmatter (claudeSlashCommand). Registration errors if it would shadow
// a reserved built-in name.
type Registry struct {
	custom map[string]string
}

// NewRegistry returns an empty custom-slash-command registry.
func NewRegistry() *Registry {
	return &Registry{custom: make(map[string]string)}
}

// Register associates agentName with a custom slash command. It is an
// error to register a name already reserved by a built-in agent.
func (r *Registry) Register(agentName, slashCommand string) error {
	key := strings.ToLower(agentName)
	if _, reserved := reservedSlashCommands[key]; reserved {
		return fmt.Errorf("agent type %q is reserved and cannot be overridden", agentName)
	}
	r.custom[key] = slashCommand
	return nil
}

func (r *Registry) lookup(agentName string) (string, bool) {
	if r == nil {
		return "", false
	}
	cmd, ok := r.custom[strings.ToLower(agentName)]
	return cmd, ok
}

// Parse parses raw into a ParsedAgentType. registry may be nil, in which
// case only reserved built-in slash commands are resolved.
func Parse(raw string, registry *Registry) (models.ParsedAgentType, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.ParsedAgentType{}, fmt.Errorf("agent type is empty")
	}

	var backend, name string

	switch {
	case strings.HasPrefix(raw, "@"):
		backend = defaultBackend
		name = raw[1:]
	case strings.Contains(raw, ":"):
		parts := strings.SplitN(raw, ":", 2)
		backend = strings.ToLower(parts[0])
		name = parts[1]
		if !validBackends[backend] {
			return models.ParsedAgentType{}, fmt.Errorf("unknown agent-type backend %q", backend)
		}
	default:
		backend = defaultBackend
		name = raw
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return models.ParsedAgentType{}, fmt.Errorf("agent type %q has an empty name", raw)
	}

	parsed := models.ParsedAgentType{Backend: backend, AgentName: name}

	if cmd, ok := reservedSlashCommands[strings.ToLower(name)]; ok {
		parsed.SlashCommand = cmd
	} else if cmd, ok := registry.lookup(name); ok {
		parsed.SlashCommand = cmd
	}

	return parsed, nil
}
