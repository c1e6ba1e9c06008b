// Package definitions discovers agent/command/skill definition files on
// disk: YAML frontmatter between "---" markers followed by a Markdown body,
// the same shape the teacher's internal/agent package parses for Claude Code
// agent files.
package definitions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

// DefinitionKind distinguishes the three kinds of definition file this
// package discovers.
type DefinitionKind int

const (
	KindAgent DefinitionKind = iota
	KindCommand
	KindSkill
)

func (k DefinitionKind) String() string {
	switch k {
	case KindAgent:
		return "agent"
	case KindCommand:
		return "command"
	case KindSkill:
		return "skill"
	default:
		return "unknown"
	}
}

// Definition is one discovered agent/command/skill file.
type Definition struct {
	Kind        DefinitionKind
	ID          string
	Frontmatter map[string]any
	Body        string
	FilePath    string
}

// DefinitionStore discovers and serves definition files.
type DefinitionStore interface {
	Discover(ctx context.Context) error
	Get(kind DefinitionKind, id string) (*Definition, bool)
	List(kind DefinitionKind) []*Definition
}

// Source is one directory tree scanned for a given kind. Repo sources take
// precedence over builtin ones of the same kind when ids collide.
type Source struct {
	Kind    DefinitionKind
	Dir     string
	IsRepo  bool // repo entries override builtins by case-insensitive id
}

// cacheTTL is how long a completed Discover() stays valid before a caller
// should re-scan, per spec.md §6.
const cacheTTL = 30 * time.Second

// Store is the default DefinitionStore: it walks a fixed set of Source
// directories, extracts frontmatter+body, and caches the result for
// cacheTTL. Grounded on the teacher's internal/agent.Registry (directory
// whitelisting, case-insensitive override-by-id) and internal/parser's
// goldmark-based body rendering.
type Store struct {
	sources []Source
	md      goldmark.Markdown

	mu          sync.RWMutex
	byKind      map[DefinitionKind]map[string]*Definition // id is lowercased
	lastScanned time.Time
}

// NewStore constructs a Store over the given sources. Sources are scanned in
// order; a later repo source overrides an earlier builtin source for the
// same kind+id.
func NewStore(sources []Source) *Store {
	return &Store{
		sources: sources,
		md:      goldmark.New(),
		byKind:  make(map[DefinitionKind]map[string]*Definition),
	}
}

// Discover (re)scans all sources if the cache has expired. Safe to call
// repeatedly; cheap when the cache is warm.
func (s *Store) Discover(ctx context.Context) error {
	s.mu.RLock()
	fresh := time.Since(s.lastScanned) < cacheTTL && !s.lastScanned.IsZero()
	s.mu.RUnlock()
	if fresh {
		return nil
	}

	next := make(map[DefinitionKind]map[string]*Definition)
	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		defs, err := scanSource(src)
		if err != nil {
			return fmt.Errorf("scan %s (%s): %w", src.Dir, src.Kind, err)
		}
		kindMap := next[src.Kind]
		if kindMap == nil {
			kindMap = make(map[string]*Definition)
			next[src.Kind] = kindMap
		}
		for id, def := range defs {
			// Repo sources always override; builtin sources only fill gaps.
			if _, exists := kindMap[id]; exists && !src.IsRepo {
				continue
			}
			kindMap[id] = def
		}
	}

	s.mu.Lock()
	s.byKind = next
	s.lastScanned = time.Now()
	s.mu.Unlock()
	return nil
}

// Get returns the definition for kind+id (case-insensitive), if discovered.
func (s *Store) Get(kind DefinitionKind, id string) (*Definition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kindMap, ok := s.byKind[kind]
	if !ok {
		return nil, false
	}
	def, ok := kindMap[strings.ToLower(id)]
	return def, ok
}

// List returns every discovered definition of the given kind.
func (s *Store) List(kind DefinitionKind) []*Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kindMap := s.byKind[kind]
	out := make([]*Definition, 0, len(kindMap))
	for _, def := range kindMap {
		out = append(out, def)
	}
	return out
}

func scanSource(src Source) (map[string]*Definition, error) {
	out := make(map[string]*Definition)
	if _, err := os.Stat(src.Dir); os.IsNotExist(err) {
		return out, nil
	}

	err := filepath.Walk(src.Dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			base := filepath.Base(path)
			if path != src.Dir && (base == "examples" || base == "transcripts" || base == "logs") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".md") {
			return nil
		}
		base := filepath.Base(path)
		if base == "README.md" {
			return nil
		}

		def, err := parseDefinitionFile(src.Kind, path)
		if err != nil {
			// Malformed definitions are skipped, not fatal, mirroring the
			// teacher's discovery warn-and-continue behavior.
			return nil
		}
		out[strings.ToLower(def.ID)] = def
		return nil
	})
	return out, err
}

func parseDefinitionFile(kind DefinitionKind, path string) (*Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fm, body := extractFrontmatter(content)
	if fm == nil {
		return nil, fmt.Errorf("no frontmatter found in %s", path)
	}

	var fields map[string]any
	if err := yaml.Unmarshal(fm, &fields); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	id, _ := fields["name"].(string)
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), ".md")
	}

	return &Definition{
		Kind:        kind,
		ID:          id,
		Frontmatter: fields,
		Body:        string(body),
		FilePath:    path,
	}, nil
}

// extractFrontmatter splits YAML frontmatter (between "---" markers) from
// the Markdown body that follows it.
func extractFrontmatter(content []byte) (frontmatter, body []byte) {
	lines := strings.Split(string(content), "\n")
	if len(lines) < 3 || lines[0] != "---" {
		return nil, content
	}
	for i := 1; i < len(lines); i++ {
		if lines[i] == "---" {
			return []byte(strings.Join(lines[1:i], "\n")), []byte(strings.Join(lines[i+1:], "\n"))
		}
	}
	return nil, content
}

// RenderBody renders a definition's Markdown body to HTML via goldmark, for
// callers that want rendered output rather than raw Markdown (e.g. a future
// web surface). Most callers consume Body directly as prompt text.
func (s *Store) RenderBody(def *Definition) (string, error) {
	var buf strings.Builder
	if err := s.md.Convert([]byte(def.Body), &buf); err != nil {
		return "", fmt.Errorf("render %s: %w", def.FilePath, err)
	}
	return buf.String(), nil
}
