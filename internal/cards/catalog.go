package cards

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// Catalog is an in-memory card database keyed by card name.
// Lookups are case-insensitive and ignore surrounding whitespace.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]Metadata
}

// NewCatalog creates a catalog holding the given entries.
func NewCatalog(entries ...Metadata) *Catalog {
	c := &Catalog{byName: make(map[string]Metadata, len(entries))}
	for _, m := range entries {
		c.byName[catalogKey(m.Name)] = m
	}
	return c
}

func catalogKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add inserts or replaces an entry.
func (c *Catalog) Add(m Metadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName[catalogKey(m.Name)] = m
}

// Lookup implements Lookup.
func (c *Catalog) Lookup(name string) (Metadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byName[catalogKey(name)]
	return m, ok
}

// Len returns the number of cards in the catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byName)
}

// Names returns every card name, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.byName))
	for _, m := range c.byName {
		names = append(names, m.Name)
	}
	sort.Strings(names)
	return names
}

// All returns a copy of every entry, sorted by name.
func (c *Catalog) All() []Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Metadata, 0, len(c.byName))
	for _, m := range c.byName {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ygoproCard mirrors one element of the YGOProDeck card info dump.
type ygoproCard struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Desc      string `json:"desc"`
	Race      string `json:"race"`
	Attribute string `json:"attribute"`
	Atk       *int   `json:"atk"`
	Def       *int   `json:"def"`
	Level     *int   `json:"level"`
}

type ygoproDump struct {
	Data []ygoproCard `json:"data"`
}

// LoadYGOProDeck reads a YGOProDeck card info dump ({"data": [...]}).
// Entries without a name are skipped.
func LoadYGOProDeck(r io.Reader) (*Catalog, error) {
	var dump ygoproDump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return nil, fmt.Errorf("decode card dump: %w", err)
	}

	c := NewCatalog()
	for _, raw := range dump.Data {
		if strings.TrimSpace(raw.Name) == "" {
			continue
		}
		c.byName[catalogKey(raw.Name)] = raw.metadata()
	}
	return c, nil
}

// LoadYGOProDeckFile opens path and loads it with LoadYGOProDeck.
func LoadYGOProDeckFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open card dump: %w", err)
	}
	defer f.Close()
	return LoadYGOProDeck(f)
}

func (c ygoproCard) metadata() Metadata {
	m := Metadata{
		Passcode:  c.ID,
		Name:      c.Name,
		TypeLine:  c.Type,
		Kind:      ParseKind(c.Type),
		Category:  ParseCategory(c.Type),
		Attribute: c.Attribute,
		Race:      c.Race,
		Effect:    c.Desc,
	}
	if m.Kind == KindMonster {
		m.Attack = c.Atk
		m.Defense = c.Def
		m.Level = c.Level
	}
	return m
}
