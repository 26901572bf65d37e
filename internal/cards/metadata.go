package cards

import "strings"

// Kind is the broad card frame: monster, spell or trap.
type Kind int

const (
	KindMonster Kind = iota
	KindSpell
	KindTrap
)

func (k Kind) String() string {
	switch k {
	case KindMonster:
		return "MONSTER"
	case KindSpell:
		return "SPELL"
	case KindTrap:
		return "TRAP"
	default:
		return "UNKNOWN"
	}
}

// ParseKind derives the kind from a YGOProDeck type line ("Normal Monster", "Spell Card", ...).
func ParseKind(typeLine string) Kind {
	t := strings.ToLower(typeLine)
	switch {
	case strings.Contains(t, "spell"):
		return KindSpell
	case strings.Contains(t, "trap"):
		return KindTrap
	default:
		return KindMonster
	}
}

// Category is the summoning category of a card. It only decides deck placement.
type Category int

const (
	CategoryNormal Category = iota
	CategoryFusion
	CategorySynchro
	CategoryXyz
	CategoryLink
	CategoryPendulum
)

func (c Category) String() string {
	switch c {
	case CategoryNormal:
		return "NORMAL"
	case CategoryFusion:
		return "FUSION"
	case CategorySynchro:
		return "SYNCHRO"
	case CategoryXyz:
		return "XYZ"
	case CategoryLink:
		return "LINK"
	case CategoryPendulum:
		return "PENDULUM"
	default:
		return "UNKNOWN"
	}
}

// IsExtraDeck reports whether cards of this category live in the extra deck.
// Plain pendulum monsters are main deck cards; pendulum fusion/synchro/xyz
// variants parse to their extra deck category.
func (c Category) IsExtraDeck() bool {
	switch c {
	case CategoryFusion, CategorySynchro, CategoryXyz, CategoryLink:
		return true
	default:
		return false
	}
}

// ParseCategory maps a YGOProDeck type line to a Category.
// "Synchro Pendulum Effect Monster" is a synchro card, so the extra deck
// categories are matched before pendulum.
func ParseCategory(typeLine string) Category {
	t := strings.ToLower(typeLine)
	switch {
	case strings.Contains(t, "fusion"):
		return CategoryFusion
	case strings.Contains(t, "synchro"):
		return CategorySynchro
	case strings.Contains(t, "xyz"):
		return CategoryXyz
	case strings.Contains(t, "link"):
		return CategoryLink
	case strings.Contains(t, "pendulum"):
		return CategoryPendulum
	default:
		return CategoryNormal
	}
}

// Metadata is the static data of a named card as found in the card database.
// Level, Attack and Defense are nil when the card has no such stat
// (spells, traps, defense of link monsters).
type Metadata struct {
	Passcode  int64
	Name      string
	TypeLine  string
	Kind      Kind
	Category  Category
	Attribute string
	Race      string
	Level     *int
	Attack    *int
	Defense   *int
	Effect    string
}

// Lookup resolves a card name to its metadata.
type Lookup interface {
	Lookup(name string) (Metadata, bool)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(name string) (Metadata, bool)

func (f LookupFunc) Lookup(name string) (Metadata, bool) {
	return f(name)
}

// IntPtr returns a pointer to v. Handy for building Metadata literals.
func IntPtr(v int) *int {
	return &v
}
