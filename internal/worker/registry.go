// Package worker holds the closed set of supervised workers. The set is
// enumerated once, from built-in defaults or from config, and every other
// component resolves names through the registry.
package worker

import (
	"fmt"
	"strings"
)

// Spec describes one supervised worker.
type Spec struct {
	Name    string   `toml:"name" mapstructure:"name"`
	Command string   `toml:"command" mapstructure:"command"`
	WorkDir string   `toml:"workdir" mapstructure:"workdir"`
	Env     []string `toml:"env" mapstructure:"env"`
}

// Registry is an ordered, immutable set of worker specs keyed by name.
type Registry struct {
	order  []string
	byName map[string]Spec
}

// Defaults returns the original crawler fleet: the five spiders plus the
// download-monitor dashboard. The dashboard comes last so that start-all
// brings the crawlers up first.
func Defaults() []Spec {
	crawl := func(name string) Spec {
		return Spec{Name: name, Command: "scrapy crawl " + name}
	}
	return []Spec{
		crawl("chigua"),
		crawl("51chigua"),
		crawl("sfnmt"),
		crawl("nungvl"),
		crawl("spankbang"),
		{
			Name:    "dashboard",
			Command: "streamlit run web/monitor.py --server.headless true --server.port 8501",
		},
	}
}

// NewRegistry validates the specs and builds a registry preserving order.
func NewRegistry(specs []Spec) (*Registry, error) {
	r := &Registry{byName: make(map[string]Spec, len(specs))}
	for _, s := range specs {
		if err := validateName(s.Name); err != nil {
			return nil, err
		}
		if strings.TrimSpace(s.Command) == "" {
			return nil, fmt.Errorf("worker %s: command is required", s.Name)
		}
		if _, dup := r.byName[s.Name]; dup {
			return nil, fmt.Errorf("duplicate worker name %q", s.Name)
		}
		r.byName[s.Name] = s
		r.order = append(r.order, s.Name)
	}
	if len(r.order) == 0 {
		return nil, fmt.Errorf("no workers defined")
	}
	return r, nil
}

// Lookup resolves a worker by name.
func (r *Registry) Lookup(name string) (Spec, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Names returns worker names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Specs returns all worker specs in registration order.
func (r *Registry) Specs() []Spec {
	out := make([]Spec, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}

// validateName rejects names that would be unsafe as pid/log file stems.
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("worker name is required")
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
		default:
			return fmt.Errorf("worker name %q: allowed characters are [A-Za-z0-9._-]", name)
		}
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("worker name %q must not contain '..'", name)
	}
	return nil
}
