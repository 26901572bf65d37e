package game

import (
	"math/rand"

	"github.com/yugisim/duel-server-go/internal/cards"
)

// Deck is a player's draw pile plus the non-drawable extra and side piles.
// The draw pile is shuffled once when the deck is built; Draw takes from the front.
type Deck struct {
	main  []*Card
	extra []*Card
	side  []*Card
}

// NewDeck builds a deck from already instantiated cards and shuffles the draw pile.
func NewDeck(main, extra, side []*Card, rng *rand.Rand) *Deck {
	d := &Deck{
		main:  append([]*Card(nil), main...),
		extra: append([]*Card(nil), extra...),
		side:  append([]*Card(nil), side...),
	}
	for _, pile := range [][]*Card{d.main, d.extra, d.side} {
		for _, c := range pile {
			c.Zone = ZoneDeck
		}
	}
	d.Shuffle(rng)
	return d
}

// buildDeck instantiates every copy named by the list. Names the lookup does not
// know are skipped and returned. Extra deck categories listed in the main deck
// are moved to the extra pile.
func buildDeck(list cards.DeckList, lookup cards.Lookup, rng *rand.Rand) (*Deck, []string) {
	var main, extra, side []*Card
	var skipped []string
	seen := make(map[string]bool)

	expand := func(entries []cards.Entry, place func(*Card)) {
		for _, entry := range entries {
			meta, ok := lookup.Lookup(entry.Name)
			if !ok {
				if !seen[entry.Name] {
					seen[entry.Name] = true
					skipped = append(skipped, entry.Name)
				}
				continue
			}
			for i := 0; i < entry.Count; i++ {
				place(newCard(meta))
			}
		}
	}

	expand(list.Main, func(c *Card) {
		if c.Category.IsExtraDeck() {
			extra = append(extra, c)
			return
		}
		main = append(main, c)
	})
	expand(list.Extra, func(c *Card) { extra = append(extra, c) })
	expand(list.Side, func(c *Card) { side = append(side, c) })

	return NewDeck(main, extra, side, rng), skipped
}

// Draw removes and returns the top card. ok is false when the pile is empty.
func (d *Deck) Draw() (card *Card, ok bool) {
	if len(d.main) == 0 {
		return nil, false
	}
	card = d.main[0]
	d.main[0] = nil
	d.main = d.main[1:]
	return card, true
}

// Shuffle reorders the draw pile.
func (d *Deck) Shuffle(rng *rand.Rand) {
	if rng == nil {
		return
	}
	rng.Shuffle(len(d.main), func(i, j int) { d.main[i], d.main[j] = d.main[j], d.main[i] })
}

// Len is the number of drawable cards left.
func (d *Deck) Len() int {
	return len(d.main)
}

// ExtraLen is the size of the extra deck.
func (d *Deck) ExtraLen() int {
	return len(d.extra)
}

// SideLen is the size of the side deck.
func (d *Deck) SideLen() int {
	return len(d.side)
}

// Total counts every card owned by the deck across all piles.
func (d *Deck) Total() int {
	return len(d.main) + len(d.extra) + len(d.side)
}
