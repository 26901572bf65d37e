package cards

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// MaxCopies is the copy limit for cards that appear on no banlist.
const MaxCopies = 3

// Banlist maps a card name to the number of copies allowed:
// 0 forbidden, 1 limited, 2 semi-limited.
type Banlist map[string]int

// Banlists holds one banlist per format name.
type Banlists map[string]Banlist

// LoadBanlists decodes a {format: {card: limit}} document.
func LoadBanlists(r io.Reader) (Banlists, error) {
	var b Banlists
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode banlists: %w", err)
	}
	return b, nil
}

// LoadBanlistsFile opens path and loads it with LoadBanlists.
func LoadBanlistsFile(path string) (Banlists, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open banlists: %w", err)
	}
	defer f.Close()
	return LoadBanlists(f)
}

// Format returns the banlist for a format, matching the name case-insensitively.
func (b Banlists) Format(name string) (Banlist, bool) {
	if list, ok := b[name]; ok {
		return list, true
	}
	for format, list := range b {
		if strings.EqualFold(format, name) {
			return list, true
		}
	}
	return nil, false
}

// Limit returns how many copies of name a deck may contain.
func (b Banlist) Limit(name string) int {
	if n, ok := b[name]; ok {
		return n
	}
	for card, n := range b {
		if strings.EqualFold(card, name) {
			return n
		}
	}
	return MaxCopies
}

// Violation is a card that appears more often than its limit allows.
type Violation struct {
	Card   string
	Copies int
	Limit  int
}

func (v Violation) String() string {
	switch v.Limit {
	case 0:
		return fmt.Sprintf("%s is forbidden (%d copies)", v.Card, v.Copies)
	default:
		return fmt.Sprintf("%s: %d copies, limit %d", v.Card, v.Copies, v.Limit)
	}
}

// Validate checks every card of the list, across main, extra and side deck.
// A nil banlist still enforces MaxCopies.
func (b Banlist) Validate(list DeckList) []Violation {
	totals := make(map[string]int)
	names := make(map[string]string)
	for _, part := range [][]Entry{list.Main, list.Extra, list.Side} {
		for _, e := range part {
			if e.Count <= 0 {
				continue
			}
			key := strings.ToLower(e.Name)
			totals[key] += e.Count
			if _, ok := names[key]; !ok {
				names[key] = e.Name
			}
		}
	}

	var violations []Violation
	for key, copies := range totals {
		name := names[key]
		if limit := b.Limit(name); copies > limit {
			violations = append(violations, Violation{Card: name, Copies: copies, Limit: limit})
		}
	}
	sort.Slice(violations, func(i, j int) bool { return violations[i].Card < violations[j].Card })
	return violations
}
