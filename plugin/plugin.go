// Package plugin bundles the built-in tool sets a session can enable by
// plugin name (for example "Weather") instead of listing every tool.
package plugin

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/tool"
)

// Plugin names understood by the default catalog.
const (
	WeatherName = "Weather"
	MemoryName  = "Memory"
)

// Plugin is a named group of tools.
type Plugin struct {
	Name  string
	Tools []tool.Tool
}

// ToolNames returns the names of the plugin's tools in declaration order.
func (p Plugin) ToolNames() []string {
	names := make([]string, len(p.Tools))
	for i, t := range p.Tools {
		names[i] = t.Name()
	}

	return names
}

// Catalog remembers which tools belong to which plugin.
type Catalog struct {
	mu      sync.RWMutex
	plugins map[string][]string
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{plugins: make(map[string][]string)}
}

// Install registers every tool of p with r and records the plugin.
func (c *Catalog) Install(r *tool.Registry, p Plugin) error {
	if p.Name == "" {
		return &core.ValidationError{Field: "plugin.name", Message: "must not be empty"}
	}

	for _, t := range p.Tools {
		if err := r.Register(t); err != nil {
			return fmt.Errorf("install plugin %s: %w", p.Name, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.plugins[p.Name] = p.ToolNames()

	return nil
}

// Names returns the installed plugin names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.plugins))
	for n := range c.plugins {
		names = append(names, n)
	}

	slices.Sort(names)

	return names
}

// Expand turns a list of plugin or tool names into the ordered, de-duplicated
// list of tool names. Unknown names are a validation error.
func (c *Catalog) Expand(r *tool.Registry, names []string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(names))
	seen := make(map[string]bool)

	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}

	for _, n := range names {
		if tools, ok := c.plugins[n]; ok {
			for _, t := range tools {
				add(t)
			}

			continue
		}

		if r.Has(n) {
			add(n)
			continue
		}

		return nil, &core.ValidationError{Field: "plugins", Value: n, Message: fmt.Sprintf("unknown plugin or tool %q", n)}
	}

	return out, nil
}

// Defaults returns the built-in plugins.
func Defaults(w *Weather) []Plugin {
	if w == nil {
		w = NewWeather()
	}

	return []Plugin{
		{Name: WeatherName, Tools: w.Tools()},
		{Name: MemoryName, Tools: MemoryTools()},
	}
}

func intArg(args map[string]any, key string, def int) (int, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, true
	}

	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	}

	return 0, false
}

func floatArg(args map[string]any, key string, def float64) float64 {
	switch n := args[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}

	return def
}

func stringArg(args map[string]any, key, def string) string {
	if s, ok := args[key].(string); ok && s != "" {
		return s
	}

	return def
}
