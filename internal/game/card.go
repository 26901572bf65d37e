package game

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/yugisim/duel-server-go/internal/cards"
)

// Zone is the container a card currently sits in.
type Zone int

const (
	ZoneDeck Zone = iota
	ZoneHand
	ZoneField
	ZoneGraveyard
	ZoneBanished
)

func (z Zone) String() string {
	switch z {
	case ZoneDeck:
		return "deck"
	case ZoneHand:
		return "hand"
	case ZoneField:
		return "field"
	case ZoneGraveyard:
		return "graveyard"
	case ZoneBanished:
		return "banished"
	default:
		return "unknown"
	}
}

// ParseZone is the inverse of Zone.String.
func ParseZone(s string) (Zone, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deck":
		return ZoneDeck, nil
	case "hand":
		return ZoneHand, nil
	case "field":
		return ZoneField, nil
	case "graveyard", "gy":
		return ZoneGraveyard, nil
	case "banished", "banish":
		return ZoneBanished, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidZone, s)
	}
}

// Card is one physical card instance. Everything but Zone is fixed when the
// card is instantiated from catalog metadata; the engine only ever moves it.
type Card struct {
	InstanceID string
	Name       string
	Kind       cards.Kind
	Category   cards.Category
	Attribute  string
	Level      *int
	Attack     *int
	Defense    *int
	EffectText string
	Zone       Zone
}

func newCard(meta cards.Metadata) *Card {
	return &Card{
		InstanceID: uuid.New().String(),
		Name:       meta.Name,
		Kind:       meta.Kind,
		Category:   meta.Category,
		Attribute:  meta.Attribute,
		Level:      copyInt(meta.Level),
		Attack:     copyInt(meta.Attack),
		Defense:    copyInt(meta.Defense),
		EffectText: meta.Effect,
		Zone:       ZoneDeck,
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// CanAttack reports whether the card is a monster with an attack stat.
func (c *Card) CanAttack() bool {
	return c.Kind == cards.KindMonster && c.Attack != nil
}

// CardView is the serializable projection of a card.
type CardView struct {
	InstanceID string `json:"instance_id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Category   string `json:"category"`
	Attribute  string `json:"attribute,omitempty"`
	Level      *int   `json:"level,omitempty"`
	Attack     *int   `json:"attack,omitempty"`
	Defense    *int   `json:"defense,omitempty"`
	EffectText string `json:"effect,omitempty"`
	Zone       string `json:"zone"`
}

// View returns a detached copy of the card for snapshots.
func (c *Card) View() CardView {
	return CardView{
		InstanceID: c.InstanceID,
		Name:       c.Name,
		Kind:       c.Kind.String(),
		Category:   c.Category.String(),
		Attribute:  c.Attribute,
		Level:      copyInt(c.Level),
		Attack:     copyInt(c.Attack),
		Defense:    copyInt(c.Defense),
		EffectText: c.EffectText,
		Zone:       c.Zone.String(),
	}
}

func cardViews(pile []*Card) []CardView {
	views := make([]CardView, len(pile))
	for i, c := range pile {
		views[i] = c.View()
	}
	return views
}

func indexOfCard(pile []*Card, instanceID string) int {
	for i, c := range pile {
		if c.InstanceID == instanceID {
			return i
		}
	}
	return -1
}

func removeCardAt(pile []*Card, i int) []*Card {
	return append(pile[:i], pile[i+1:]...)
}
