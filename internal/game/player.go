package game

import "time"

// Player is one participant's board. It holds data only; legality is checked by GameSession.
type Player struct {
	ActorID     string
	DisplayName string
	LifePoints  int
	Hand        []*Card
	Field       []*Card
	Graveyard   []*Card
	Banished    []*Card
	Deck        *Deck
	JoinedAt    time.Time
}

func newPlayer(actorID, displayName string, lifePoints int, deck *Deck) *Player {
	return &Player{
		ActorID:     actorID,
		DisplayName: displayName,
		LifePoints:  lifePoints,
		Hand:        make([]*Card, 0),
		Field:       make([]*Card, 0),
		Graveyard:   make([]*Card, 0),
		Banished:    make([]*Card, 0),
		Deck:        deck,
		JoinedAt:    time.Now(),
	}
}

// CardCount is the size of the player's whole card pool, in every zone.
func (p *Player) CardCount() int {
	n := len(p.Hand) + len(p.Field) + len(p.Graveyard) + len(p.Banished)
	if p.Deck != nil {
		n += p.Deck.Total()
	}
	return n
}

func (p *Player) pile(zone Zone) *[]*Card {
	switch zone {
	case ZoneHand:
		return &p.Hand
	case ZoneField:
		return &p.Field
	case ZoneGraveyard:
		return &p.Graveyard
	case ZoneBanished:
		return &p.Banished
	default:
		return nil
	}
}

// take removes the card from the first listed zone that holds it.
func (p *Player) take(instanceID string, zones ...Zone) (*Card, bool) {
	for _, zone := range zones {
		pile := p.pile(zone)
		if pile == nil {
			continue
		}
		if i := indexOfCard(*pile, instanceID); i >= 0 {
			card := (*pile)[i]
			*pile = removeCardAt(*pile, i)
			return card, true
		}
	}
	return nil, false
}

// put appends the card to zone and updates its zone marker.
func (p *Player) put(card *Card, zone Zone) {
	pile := p.pile(zone)
	if pile == nil {
		return
	}
	card.Zone = zone
	*pile = append(*pile, card)
}

func (p *Player) find(instanceID string, zone Zone) *Card {
	pile := p.pile(zone)
	if pile == nil {
		return nil
	}
	if i := indexOfCard(*pile, instanceID); i >= 0 {
		return (*pile)[i]
	}
	return nil
}

func (p *Player) loseLifePoints(amount int) {
	p.LifePoints -= amount
	if p.LifePoints < 0 {
		p.LifePoints = 0
	}
}

// PlayerView is the serializable projection of a player. Deck order is never exposed.
type PlayerView struct {
	ActorID     string     `json:"actor_id"`
	DisplayName string     `json:"name"`
	LifePoints  int        `json:"lp"`
	DeckCount   int        `json:"deck_count"`
	ExtraCount  int        `json:"extra_count"`
	SideCount   int        `json:"side_count"`
	Hand        []CardView `json:"hand"`
	Field       []CardView `json:"field"`
	Graveyard   []CardView `json:"graveyard"`
	Banished    []CardView `json:"banished"`
}

func (p *Player) view() PlayerView {
	v := PlayerView{
		ActorID:     p.ActorID,
		DisplayName: p.DisplayName,
		LifePoints:  p.LifePoints,
		Hand:        cardViews(p.Hand),
		Field:       cardViews(p.Field),
		Graveyard:   cardViews(p.Graveyard),
		Banished:    cardViews(p.Banished),
	}
	if p.Deck != nil {
		v.DeckCount = p.Deck.Len()
		v.ExtraCount = p.Deck.ExtraLen()
		v.SideCount = p.Deck.SideLen()
	}
	return v
}
