package cards

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Entry is a card name and how many copies of it a deck holds.
type Entry struct {
	Name  string `json:"name" yaml:"name" toml:"name"`
	Count int    `json:"count" yaml:"count" toml:"count"`
}

type entryFields struct {
	Name  string `json:"name" yaml:"name"`
	Count *int   `json:"count" yaml:"count"`
}

func (f entryFields) entry() Entry {
	e := Entry{Name: f.Name, Count: 1}
	if f.Count != nil {
		e.Count = *f.Count
	}
	return e
}

// UnmarshalJSON accepts a bare card name (one copy) or a {name, count} object.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*e = Entry{Name: name, Count: 1}
		return nil
	}
	var f entryFields
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("deck entry: %w", err)
	}
	*e = f.entry()
	return nil
}

// UnmarshalYAML accepts a bare card name (one copy) or a {name, count} mapping.
func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*e = Entry{Name: value.Value, Count: 1}
		return nil
	}
	var f entryFields
	if err := value.Decode(&f); err != nil {
		return fmt.Errorf("deck entry: %w", err)
	}
	*e = f.entry()
	return nil
}

// UnmarshalTOML accepts a bare card name (one copy) or a {name, count} table.
func (e *Entry) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		*e = Entry{Name: v, Count: 1}
		return nil
	case map[string]any:
		name, _ := v["name"].(string)
		entry := Entry{Name: name, Count: 1}
		if raw, ok := v["count"]; ok {
			count, ok := raw.(int64)
			if !ok {
				return fmt.Errorf("deck entry %q: count must be an integer", name)
			}
			entry.Count = int(count)
		}
		*e = entry
		return nil
	}
	return fmt.Errorf("deck entry: unexpected TOML value %T", data)
}

// DeckList is the source of a player's deck: card names partitioned into
// main, extra and side deck, each with a copy count.
type DeckList struct {
	Name  string  `json:"name,omitempty" yaml:"name" toml:"name"`
	Main  []Entry `json:"main" yaml:"main" toml:"main"`
	Extra []Entry `json:"extra,omitempty" yaml:"extra" toml:"extra"`
	Side  []Entry `json:"side,omitempty" yaml:"side" toml:"side"`
}

type deckListFields DeckList

// UnmarshalJSON accepts the partitioned form {"main": [...], "extra": [...], "side": [...]}
// as well as the deck builder's flat maps {"Card": 3} and
// {"Card": {"count": 3, "location": "extra"}}.
func (d *DeckList) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("deck list: %w", err)
	}
	if isPartitioned(fields) {
		var f deckListFields
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("deck list: %w", err)
		}
		*d = DeckList(f)
		return nil
	}

	flat := DeckList{}
	for name, raw := range fields {
		if name == "name" {
			var deckName string
			if err := json.Unmarshal(raw, &deckName); err == nil {
				flat.Name = deckName
				continue
			}
		}
		var count int
		if err := json.Unmarshal(raw, &count); err == nil {
			flat.Main = append(flat.Main, Entry{Name: name, Count: count})
			continue
		}
		var placed struct {
			Count    int    `json:"count"`
			Location string `json:"location"`
		}
		if err := json.Unmarshal(raw, &placed); err != nil {
			return fmt.Errorf("deck list entry %q: %w", name, err)
		}
		entry := Entry{Name: name, Count: placed.Count}
		switch strings.ToLower(placed.Location) {
		case "extra":
			flat.Extra = append(flat.Extra, entry)
		case "side":
			flat.Side = append(flat.Side, entry)
		default:
			flat.Main = append(flat.Main, entry)
		}
	}
	flat.sortEntries()
	*d = flat
	return nil
}

func isPartitioned(fields map[string]json.RawMessage) bool {
	for _, key := range []string{"main", "extra", "side"} {
		raw, ok := fields[key]
		if ok && len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '[' {
			return true
		}
	}
	return false
}

// map iteration order is random; keep flat decks stable
func (d *DeckList) sortEntries() {
	for _, part := range [][]Entry{d.Main, d.Extra, d.Side} {
		sortEntries(part)
	}
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
}

// MainCount returns the number of card copies in the main deck.
func (d DeckList) MainCount() int {
	return countEntries(d.Main)
}

// Copies returns how many copies of name appear across all partitions.
func (d DeckList) Copies(name string) int {
	n := 0
	for _, part := range [][]Entry{d.Main, d.Extra, d.Side} {
		for _, e := range part {
			if strings.EqualFold(e.Name, name) {
				n += e.Count
			}
		}
	}
	return n
}

// Deck size limits per partition.
const (
	MaxMainDeck  = 60
	MaxExtraDeck = 15
	MaxSideDeck  = 15
)

// ExtraCount is the number of cards in the extra deck.
func (d DeckList) ExtraCount() int {
	return countEntries(d.Extra)
}

// SideCount is the number of cards in the side deck.
func (d DeckList) SideCount() int {
	return countEntries(d.Side)
}

// CheckSize rejects lists with more cards in a partition than its limit allows.
func (d DeckList) CheckSize() error {
	if n := d.MainCount(); n > MaxMainDeck {
		return fmt.Errorf("main deck has %d cards, limit %d", n, MaxMainDeck)
	}
	if n := d.ExtraCount(); n > MaxExtraDeck {
		return fmt.Errorf("extra deck has %d cards, limit %d", n, MaxExtraDeck)
	}
	if n := d.SideCount(); n > MaxSideDeck {
		return fmt.Errorf("side deck has %d cards, limit %d", n, MaxSideDeck)
	}
	return nil
}

func countEntries(entries []Entry) int {
	n := 0
	for _, e := range entries {
		if e.Count > 0 {
			n += e.Count
		}
	}
	return n
}

// ParseDeckList decodes a deck list. format is "json", "yaml"/"yml" or "toml".
func ParseDeckList(data []byte, format string) (DeckList, error) {
	var d DeckList
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "json", "":
		if err := json.Unmarshal(data, &d); err != nil {
			return DeckList{}, err
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &d); err != nil {
			return DeckList{}, fmt.Errorf("parse deck YAML: %w", err)
		}
	case "toml":
		if _, err := toml.Decode(string(data), &d); err != nil {
			return DeckList{}, fmt.Errorf("parse deck TOML: %w", err)
		}
	default:
		return DeckList{}, fmt.Errorf("unsupported deck format %q", format)
	}
	return d, nil
}

// LoadDeckListFile reads a deck list, picking the format from the file extension.
func LoadDeckListFile(path string) (DeckList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DeckList{}, err
	}
	d, err := ParseDeckList(data, filepath.Ext(path))
	if err != nil {
		return DeckList{}, fmt.Errorf("%s: %w", path, err)
	}
	if d.Name == "" {
		d.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return d, nil
}
