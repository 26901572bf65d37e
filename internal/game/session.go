package game

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/yugisim/duel-server-go/internal/cards"
	"go.uber.org/zap"
)

// MaxPlayers is the seat count of a duel room.
const MaxPlayers = 2

// Options tunes the rules a session is created with.
type Options struct {
	StartingLifePoints int
	OpeningHandSize    int
	JournalLimit       int
	// Shuffle randomizes draw piles. Tests turn it off to draw in list order.
	Shuffle bool
}

// DefaultOptions returns the standard duel settings.
func DefaultOptions() Options {
	return Options{
		StartingLifePoints: 8000,
		OpeningHandSize:    5,
		JournalLimit:       200,
		Shuffle:            true,
	}
}

// GameSession is one duel room. All exported methods serialize on the session
// lock; Exec runs several steps and the resulting snapshot under one acquisition.
type GameSession struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	players    map[string]*Player
	order      []string // join order of current members
	departed   map[string]*Player
	turnHolder string
	turn       int
	started    bool
	closed     bool

	catalog cards.Lookup
	opts    Options
	rng     *rand.Rand
	journal *Journal
	logger  *zap.Logger
}

// NewSession creates an empty session. rng drives deck shuffles; a nil rng leaves
// decks in list order.
func NewSession(id string, catalog cards.Lookup, opts Options, rng *rand.Rand, logger *zap.Logger) *GameSession {
	if catalog == nil {
		catalog = cards.NewCatalog()
	}
	return &GameSession{
		ID:        id,
		CreatedAt: time.Now(),
		players:   make(map[string]*Player),
		order:     make([]string, 0, MaxPlayers),
		departed:  make(map[string]*Player),
		catalog:   catalog,
		opts:      opts,
		rng:       rng,
		journal:   NewJournal(id, opts.JournalLimit),
		logger:    logger,
	}
}

// Journal returns the session's snapshot history.
func (s *GameSession) Journal() *Journal {
	return s.journal
}

// Exec runs fn under the session lock and returns the snapshot taken right
// after it, before the lock is released. Successful calls are journaled.
func (s *GameSession) Exec(fn func(tx *Txn) error) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(&Txn{s: s}); err != nil {
		return SessionView{}, err
	}
	view := s.snapshot()
	s.journal.Record(view)
	return view, nil
}

// Join seats actorID and returns a detached view of the seated player. See Txn.Join.
func (s *GameSession) Join(actorID, displayName string, list cards.DeckList) (PlayerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.join(actorID, displayName, list)
	if err != nil {
		return PlayerView{}, err
	}
	return p.view(), nil
}

// Leave removes actorID. See Txn.Leave.
func (s *GameSession) Leave(actorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leave(actorID)
}

// EndTurn passes the turn. See Txn.EndTurn.
func (s *GameSession) EndTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endTurn()
}

// PlayCard moves a card from hand to field. See Txn.PlayCard.
func (s *GameSession) PlayCard(actorID, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playCard(actorID, instanceID)
}

// DrawCard draws the top card of the actor's deck. See Txn.DrawCard.
func (s *GameSession) DrawCard(actorID string) (CardView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawCard(actorID)
}

// MoveCard sends a card from hand or field to the graveyard or banished pile.
func (s *GameSession) MoveCard(actorID, instanceID string, target Zone) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moveCard(actorID, instanceID, target)
}

// AdjustLifePoints adds delta to the actor's life points, flooring at zero.
func (s *GameSession) AdjustLifePoints(actorID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustLifePoints(actorID, delta)
}

// Attack resolves a battle. See Txn.Attack.
func (s *GameSession) Attack(actorID, attackerID, targetID string) (AttackResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attack(actorID, attackerID, targetID)
}

// Shuffle reorders the actor's remaining draw pile.
func (s *GameSession) Shuffle(actorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuffle(actorID)
}

// Snapshot returns the current state of the room.
func (s *GameSession) Snapshot() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Closed reports whether the session emptied and was torn down.
func (s *GameSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *GameSession) join(actorID, displayName string, list cards.DeckList) (*Player, error) {
	if s.closed {
		return nil, ErrSessionNotFound
	}
	if actorID == "" {
		return nil, ErrInvalidActor
	}
	if p, ok := s.players[actorID]; ok {
		return p, nil
	}
	if len(s.players) >= MaxPlayers {
		return nil, ErrSessionFull
	}

	p, rejoined := s.departed[actorID]
	if rejoined {
		delete(s.departed, actorID)
	} else {
		deck, skipped := buildDeck(list, s.catalog, s.rng)
		if len(skipped) > 0 && s.logger != nil {
			s.logger.Debug("skipped unknown cards",
				zap.String("session_id", s.ID),
				zap.String("actor_id", actorID),
				zap.Strings("cards", skipped),
			)
		}
		p = newPlayer(actorID, displayName, s.opts.StartingLifePoints, deck)
		for i := 0; i < s.opts.OpeningHandSize; i++ {
			card, ok := deck.Draw()
			if !ok {
				break
			}
			p.put(card, ZoneHand)
		}
	}

	s.players[actorID] = p
	s.order = append(s.order, actorID)

	if len(s.players) == MaxPlayers && !s.started {
		s.started = true
		s.turnHolder = s.order[0]
		if s.turn == 0 {
			s.turn = 1
		}
	}

	if s.logger != nil {
		s.logger.Info("player joined session",
			zap.String("session_id", s.ID),
			zap.String("actor_id", actorID),
			zap.Bool("rejoined", rejoined),
			zap.Int("players", len(s.players)),
			zap.Bool("started", s.started),
		)
	}
	return p, nil
}

func (s *GameSession) leave(actorID string) {
	p, ok := s.players[actorID]
	if !ok {
		return
	}

	delete(s.players, actorID)
	for i, id := range s.order {
		if id == actorID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	if s.turnHolder == actorID {
		s.turnHolder = ""
		if len(s.order) > 0 {
			s.turnHolder = s.order[0]
		}
	}
	if len(s.players) < MaxPlayers {
		s.started = false
	}

	if len(s.players) == 0 {
		s.closed = true
		s.departed = make(map[string]*Player)
	} else {
		s.departed[actorID] = p
	}

	if s.logger != nil {
		s.logger.Info("player left session",
			zap.String("session_id", s.ID),
			zap.String("actor_id", actorID),
			zap.Int("players", len(s.players)),
			zap.Bool("closed", s.closed),
		)
	}
}

func (s *GameSession) endTurn() {
	if !s.started || s.turnHolder == "" {
		return
	}
	for _, id := range s.order {
		if id != s.turnHolder {
			s.turnHolder = id
			s.turn++
			return
		}
	}
}

func (s *GameSession) member(actorID string) (*Player, error) {
	p, ok := s.players[actorID]
	if !ok {
		return nil, ErrNotAMember
	}
	return p, nil
}

func (s *GameSession) opponent(actorID string) *Player {
	for _, id := range s.order {
		if id != actorID {
			return s.players[id]
		}
	}
	return nil
}

func (s *GameSession) playCard(actorID, instanceID string) error {
	p, err := s.member(actorID)
	if err != nil {
		return err
	}
	card, ok := p.take(instanceID, ZoneHand)
	if !ok {
		return ErrCardNotInHand
	}
	p.put(card, ZoneField)
	return nil
}

func (s *GameSession) drawCard(actorID string) (CardView, error) {
	p, err := s.member(actorID)
	if err != nil {
		return CardView{}, err
	}
	card, ok := p.Deck.Draw()
	if !ok {
		return CardView{}, ErrDeckEmpty
	}
	p.put(card, ZoneHand)
	return card.View(), nil
}

func (s *GameSession) moveCard(actorID, instanceID string, target Zone) error {
	p, err := s.member(actorID)
	if err != nil {
		return err
	}
	if target != ZoneGraveyard && target != ZoneBanished {
		return fmt.Errorf("%w: %s", ErrInvalidZone, target)
	}
	card, ok := p.take(instanceID, ZoneHand, ZoneField)
	if !ok {
		return ErrCardNotFound
	}
	p.put(card, target)
	return nil
}

func (s *GameSession) adjustLifePoints(actorID string, delta int) error {
	p, err := s.member(actorID)
	if err != nil {
		return err
	}
	switch {
	case delta > 0 && p.LifePoints > math.MaxInt-delta:
		p.LifePoints = math.MaxInt
	case p.LifePoints+delta < 0:
		p.LifePoints = 0
	default:
		p.LifePoints += delta
	}
	return nil
}

func (s *GameSession) shuffle(actorID string) error {
	p, err := s.member(actorID)
	if err != nil {
		return err
	}
	p.Deck.Shuffle(s.rng)
	return nil
}

// AttackResult describes a resolved battle.
type AttackResult struct {
	AttackerID   string   `json:"attacker_id"`
	TargetID     string   `json:"target_id,omitempty"`
	Damage       int      `json:"damage"`
	DamagedActor string   `json:"damaged_actor,omitempty"`
	Destroyed    []string `json:"destroyed,omitempty"`
}

func (s *GameSession) attack(actorID, attackerID, targetID string) (AttackResult, error) {
	p, err := s.member(actorID)
	if err != nil {
		return AttackResult{}, err
	}
	opp := s.opponent(actorID)
	if opp == nil {
		return AttackResult{}, fmt.Errorf("%w: no opponent", ErrInvalidAttack)
	}
	attacker := p.find(attackerID, ZoneField)
	if attacker == nil {
		return AttackResult{}, ErrCardNotFound
	}
	if !attacker.CanAttack() {
		return AttackResult{}, fmt.Errorf("%w: %s cannot attack", ErrInvalidAttack, attacker.Name)
	}

	result := AttackResult{AttackerID: attackerID, TargetID: targetID}
	atk := *attacker.Attack

	if targetID == "" {
		opp.loseLifePoints(atk)
		result.Damage = atk
		result.DamagedActor = opp.ActorID
		return result, nil
	}

	target := opp.find(targetID, ZoneField)
	if target == nil {
		return AttackResult{}, ErrCardNotFound
	}
	if !target.CanAttack() {
		return AttackResult{}, fmt.Errorf("%w: %s is not a monster", ErrInvalidAttack, target.Name)
	}

	def := *target.Attack
	switch {
	case atk > def:
		s.destroy(opp, target, &result)
		opp.loseLifePoints(atk - def)
		result.Damage, result.DamagedActor = atk-def, opp.ActorID
	case atk < def:
		s.destroy(p, attacker, &result)
		p.loseLifePoints(def - atk)
		result.Damage, result.DamagedActor = def-atk, p.ActorID
	case atk > 0:
		s.destroy(p, attacker, &result)
		s.destroy(opp, target, &result)
	}
	return result, nil
}

func (s *GameSession) destroy(owner *Player, card *Card, result *AttackResult) {
	if c, ok := owner.take(card.InstanceID, ZoneField); ok {
		owner.put(c, ZoneGraveyard)
		result.Destroyed = append(result.Destroyed, c.InstanceID)
	}
}

func (s *GameSession) snapshot() SessionView {
	view := SessionView{
		SessionID:   s.ID,
		Started:     s.started,
		TurnHolder:  s.turnHolder,
		Turn:        s.turn,
		PlayerOrder: append([]string(nil), s.order...),
		Players:     make(map[string]PlayerView, len(s.players)),
	}
	for id, p := range s.players {
		view.Players[id] = p.view()
	}
	return view
}
