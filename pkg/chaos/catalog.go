package chaos

import (
	"fmt"
	"sort"
)

// Catalog is the flat registry of every action offered by the providers
type Catalog struct {
	actions   []*ActionSpec
	byCommand map[string]*ActionSpec
}

// NewCatalog asks each provider for its actions and concatenates them in
// provider order. Duplicate command names are a programming error and panic.
func NewCatalog(providers ...Provider) *Catalog {
	c := &Catalog{
		actions:   make([]*ActionSpec, 0),
		byCommand: make(map[string]*ActionSpec),
	}

	for _, p := range providers {
		for _, action := range p.BuildActions() {
			if action == nil || action.Command == "" || action.Group == "" || action.Apply == nil {
				panic(fmt.Sprintf("chaos: provider %s returned an incomplete action: %+v", p.Name(), action))
			}
			if existing, ok := c.byCommand[action.Command]; ok {
				panic(fmt.Sprintf("chaos: duplicate command %q from provider %s (already registered in group %s)",
					action.Command, p.Name(), existing.Group))
			}
			c.byCommand[action.Command] = action
			c.actions = append(c.actions, action)
		}
	}

	return c
}

// All returns every action in catalog order
func (c *Catalog) All() []*ActionSpec {
	out := make([]*ActionSpec, len(c.actions))
	copy(out, c.actions)
	return out
}

// Groups returns the sorted set of group names
func (c *Catalog) Groups() []string {
	seen := make(map[string]bool)
	groups := make([]string, 0)
	for _, a := range c.actions {
		if !seen[a.Group] {
			seen[a.Group] = true
			groups = append(groups, a.Group)
		}
	}
	sort.Strings(groups)
	return groups
}

// Commands returns every command name in catalog order
func (c *Catalog) Commands() []string {
	commands := make([]string, len(c.actions))
	for i, a := range c.actions {
		commands[i] = a.Command
	}
	return commands
}

// Find looks up an action by command name
func (c *Catalog) Find(command string) (*ActionSpec, bool) {
	a, ok := c.byCommand[command]
	return a, ok
}

// ByGroup returns the actions of each group in catalog order
func (c *Catalog) ByGroup() map[string][]*ActionSpec {
	groups := make(map[string][]*ActionSpec)
	for _, a := range c.actions {
		groups[a.Group] = append(groups[a.Group], a)
	}
	return groups
}

// Len returns the number of actions
func (c *Catalog) Len() int {
	return len(c.actions)
}
