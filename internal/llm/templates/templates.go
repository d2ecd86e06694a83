// Package templates resolves localized prompt templates. Templates are
// embedded YAML grouped by locale and group file, with fallback to the
// default locale when the primary one lacks a group.
package templates

import (
	"embed"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/advrag/ragd/internal/llm"
)

//go:embed locales/*/*.yaml
var localesFS embed.FS

// promptSpec mirrors one entry of a group file.
type promptSpec struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// Parser loads prompt groups for a primary locale with fallback.
type Parser struct {
	primary  string
	fallback string

	mu     sync.Mutex
	groups map[string]map[string]promptSpec
}

// NewParser creates a Parser. An unknown primary locale silently falls
// back, matching the behavior of a missing group file.
func NewParser(primary, fallback string) *Parser {
	if primary == "" {
		primary = fallback
	}
	return &Parser{
		primary:  primary,
		fallback: fallback,
		groups:   make(map[string]map[string]promptSpec),
	}
}

// Get resolves a prompt by group and key, substituting ${var} references
// from vars. Unknown variables are left in place rather than erased, so a
// missing binding is visible in the rendered prompt.
func (p *Parser) Get(group, key string, vars map[string]string) (llm.Prompt, error) {
	specs, err := p.loadGroup(group)
	if err != nil {
		return llm.Prompt{}, err
	}
	spec, ok := specs[key]
	if !ok {
		return llm.Prompt{}, fmt.Errorf("prompt %s.%s not found", group, key)
	}
	return llm.Prompt{
		System: substitute(spec.System, vars),
		User:   substitute(spec.User, vars),
	}, nil
}

func (p *Parser) loadGroup(group string) (map[string]promptSpec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if specs, ok := p.groups[group]; ok {
		return specs, nil
	}

	data, err := localesFS.ReadFile(fmt.Sprintf("locales/%s/%s.yaml", p.primary, group))
	if err != nil {
		data, err = localesFS.ReadFile(fmt.Sprintf("locales/%s/%s.yaml", p.fallback, group))
		if err != nil {
			return nil, fmt.Errorf("prompt group %q not found in %q or %q", group, p.primary, p.fallback)
		}
	}

	specs := make(map[string]promptSpec)
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse prompt group %q: %w", group, err)
	}
	p.groups[group] = specs
	return specs, nil
}

// substitute expands ${name} and $name references, keeping unknown ones
// verbatim.
func substitute(template string, vars map[string]string) string {
	return os.Expand(template, func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		return "${" + name + "}"
	})
}
