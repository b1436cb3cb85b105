// Package selection narrows the chaos catalog down to the actions an
// operator wants to run. Every function is pure: it returns a new slice and
// never mutates its inputs.
package selection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jihwankim/chaos-monkey/pkg/chaos"
)

// AllGroups selects the entire catalog when passed to IncludeGroups
const AllGroups = "all"

var (
	// ErrInvalidSelector is matched by every InvalidSelectorError
	ErrInvalidSelector = errors.New("invalid selector")

	// ErrEmptySelection means the criteria filtered out every action
	ErrEmptySelection = errors.New("no chaos commands selected")
)

// InvalidSelectorError names a group or command missing from the catalog
type InvalidSelectorError struct {
	Name string
}

func (e *InvalidSelectorError) Error() string {
	return fmt.Sprintf("invalid value given on command line: %s", e.Name)
}

func (e *InvalidSelectorError) Is(target error) bool {
	return target == ErrInvalidSelector
}

// Criteria holds the user supplied include/exclude lists
type Criteria struct {
	IncludeGroups   []string
	ExcludeGroups   []string
	IncludeCommands []string
	ExcludeCommands []string
}

// IncludeGroups replaces the selection with every catalog action whose
// group is listed. "all" selects the whole catalog.
func IncludeGroups(cat *chaos.Catalog, groups []string) []*chaos.ActionSpec {
	if contains(groups, AllGroups) {
		return cat.All()
	}
	want := toSet(groups)
	selected := make([]*chaos.ActionSpec, 0)
	for _, a := range cat.All() {
		if want[a.Group] {
			selected = append(selected, a)
		}
	}
	return selected
}

// ExcludeGroups removes every action whose group is listed
func ExcludeGroups(sel []*chaos.ActionSpec, groups []string) []*chaos.ActionSpec {
	drop := toSet(groups)
	return keep(sel, func(a *chaos.ActionSpec) bool { return !drop[a.Group] })
}

// IncludeCommands adds every listed catalog command that is not already
// selected
func IncludeCommands(cat *chaos.Catalog, sel []*chaos.ActionSpec, names []string) []*chaos.ActionSpec {
	present := make(map[string]bool, len(sel))
	out := make([]*chaos.ActionSpec, 0, len(sel)+len(names))
	for _, a := range sel {
		present[a.Command] = true
		out = append(out, a)
	}
	want := toSet(names)
	for _, a := range cat.All() {
		if want[a.Command] && !present[a.Command] {
			present[a.Command] = true
			out = append(out, a)
		}
	}
	return out
}

// ExcludeCommands removes every listed command
func ExcludeCommands(sel []*chaos.ActionSpec, names []string) []*chaos.ActionSpec {
	drop := toSet(names)
	return keep(sel, func(a *chaos.ActionSpec) bool { return !drop[a.Command] })
}

// Validate fails on the first name that is not part of universe
func Validate(names, universe []string) error {
	known := toSet(universe)
	for _, name := range names {
		if !known[name] {
			return &InvalidSelectorError{Name: name}
		}
	}
	return nil
}

// Filter validates the criteria against the catalog and composes the
// selection in a fixed order regardless of how flags were supplied:
// group includes (or the whole catalog when nothing is included), group
// excludes, command includes, command excludes.
func Filter(cat *chaos.Catalog, c Criteria) ([]*chaos.ActionSpec, error) {
	groups := cat.Groups()
	commands := cat.Commands()

	if err := Validate(c.IncludeGroups, append(groups, AllGroups)); err != nil {
		return nil, err
	}
	if err := Validate(c.ExcludeGroups, groups); err != nil {
		return nil, err
	}
	if err := Validate(c.IncludeCommands, commands); err != nil {
		return nil, err
	}
	if err := Validate(c.ExcludeCommands, commands); err != nil {
		return nil, err
	}

	sel := make([]*chaos.ActionSpec, 0)
	if len(c.IncludeGroups) == 0 && len(c.IncludeCommands) == 0 {
		sel = IncludeGroups(cat, []string{AllGroups})
	}
	if len(c.IncludeGroups) > 0 {
		sel = IncludeGroups(cat, c.IncludeGroups)
	}
	if len(c.ExcludeGroups) > 0 {
		sel = ExcludeGroups(sel, c.ExcludeGroups)
	}
	if len(c.IncludeCommands) > 0 {
		sel = IncludeCommands(cat, sel, c.IncludeCommands)
	}
	if len(c.ExcludeCommands) > 0 {
		sel = ExcludeCommands(sel, c.ExcludeCommands)
	}

	return sel, nil
}

// SplitList parses a comma separated flag value, dropping blanks
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Commands returns the command names of a selection
func Commands(sel []*chaos.ActionSpec) []string {
	names := make([]string, len(sel))
	for i, a := range sel {
		names[i] = a.Command
	}
	return names
}

func keep(sel []*chaos.ActionSpec, pred func(*chaos.ActionSpec) bool) []*chaos.ActionSpec {
	out := make([]*chaos.ActionSpec, 0, len(sel))
	for _, a := range sel {
		if pred(a) {
			out = append(out, a)
		}
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

func contains(items []string, item string) bool {
	for _, i := range items {
		if i == item {
			return true
		}
	}
	return false
}
