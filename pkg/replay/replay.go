// Package replay reads and writes ordered lists of chaos commands so a
// previous run can be reproduced exactly.
package replay

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// PartExt is appended to a replay file to name the remainder saved before a
// host-terminating command runs
const PartExt = ".part"

// Entry is one replayed command and how long it stays enabled
type Entry struct {
	Command string
	Timeout int
}

// MarshalYAML encodes the entry as a [command, timeout] flow pair
func (e Entry) MarshalYAML() (interface{}, error) {
	return &yaml.Node{
		Kind:  yaml.SequenceNode,
		Style: yaml.FlowStyle,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.Command},
			{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(e.Timeout)},
		},
	}, nil
}

// UnmarshalYAML decodes a [command, timeout] pair
func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode || len(value.Content) != 2 {
		return fmt.Errorf("line %d: expected [command, timeout] pair", value.Line)
	}
	if err := value.Content[0].Decode(&e.Command); err != nil {
		return fmt.Errorf("line %d: invalid command: %w", value.Line, err)
	}
	if err := value.Content[1].Decode(&e.Timeout); err != nil {
		return fmt.Errorf("line %d: invalid timeout: %w", value.Line, err)
	}
	if e.Command == "" {
		return fmt.Errorf("line %d: empty command", value.Line)
	}
	if e.Timeout < 0 {
		return fmt.Errorf("line %d: timeout must be zero or greater", value.Line)
	}
	return nil
}

func (e Entry) String() string {
	return fmt.Sprintf("[%s, %d]", e.Command, e.Timeout)
}

// PartPath returns the remainder file for a replay file
func PartPath(path string) string {
	return path + PartExt
}

// Load reads a replay file. Entries are returned in execution order.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}

	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse replay file %s: %w", path, err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Save writes entries to path, replacing any previous content
func Save(path string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal replay entries: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write replay file: %w", err)
	}
	return nil
}

// LoadForRun loads the queue a run should execute. A resumed run consumes
// the remainder file instead of the original and deletes it, so a second
// reboot never replays the same commands twice. A missing remainder means
// nothing was left to replay.
func LoadForRun(path string, restart bool) ([]Entry, error) {
	if !restart {
		return Load(path)
	}

	part := PartPath(path)
	entries, err := Load(part)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("file", part).Msg("No replay remainder found after restart")
			return []Entry{}, nil
		}
		return nil, err
	}
	if err := os.Remove(part); err != nil {
		return nil, fmt.Errorf("failed to remove replay remainder: %w", err)
	}
	return entries, nil
}

// SaveRemainder writes the entries still to run after a host-terminating
// command. An empty remainder is still written so the resumed run knows the
// queue was drained.
func SaveRemainder(path string, entries []Entry) error {
	return Save(PartPath(path), entries)
}

// DiscardRemainder removes a stale remainder file, if any
func DiscardRemainder(path string) error {
	if err := os.Remove(PartPath(path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove replay remainder: %w", err)
	}
	return nil
}

// Commands returns the command names of entries, in order
func Commands(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Command
	}
	return names
}
