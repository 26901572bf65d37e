package game

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yugisim/duel-server-go/internal/cards"
	"go.uber.org/zap"
)

// ActionType names an inbound request.
type ActionType string

const (
	ActionJoin            ActionType = "join"
	ActionDraw            ActionType = "draw"
	ActionPlayCard        ActionType = "play_card"
	ActionMoveToGraveyard ActionType = "move_to_graveyard"
	ActionMoveToBanished  ActionType = "move_to_banished"
	ActionAttack          ActionType = "attack"
	ActionAdjustLife      ActionType = "adjust_life"
	ActionShuffle         ActionType = "shuffle"
	ActionEndTurn         ActionType = "end_turn"
	ActionLeave           ActionType = "leave"
)

// turnGated lists the actions only the turn holder may take.
var turnGated = map[ActionType]bool{
	ActionDraw:            true,
	ActionPlayCard:        true,
	ActionMoveToGraveyard: true,
	ActionMoveToBanished:  true,
	ActionAttack:          true,
	ActionShuffle:         true,
	ActionEndTurn:         true,
}

// TurnGated reports whether t requires the actor to hold the turn.
func TurnGated(t ActionType) bool {
	return turnGated[t]
}

// ParseActionType normalizes a wire name such as "play-card" or "END_TURN".
func ParseActionType(s string) (ActionType, error) {
	t := ActionType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch t {
	case ActionJoin, ActionDraw, ActionPlayCard, ActionMoveToGraveyard, ActionMoveToBanished,
		ActionAttack, ActionAdjustLife, ActionShuffle, ActionEndTurn, ActionLeave:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Action is one inbound request against a session.
type Action struct {
	Type        ActionType     `json:"type"`
	ActorID     string         `json:"actor_id"`
	DisplayName string         `json:"name,omitempty"`
	Deck        cards.DeckList `json:"deck,omitempty"`
	CardID      string         `json:"card_id,omitempty"`
	TargetID    string         `json:"target_id,omitempty"`
	Delta       int            `json:"delta,omitempty"`
}

// Result is what a successful action produced.
type Result struct {
	View     SessionView   `json:"state"`
	Checksum string        `json:"checksum"`
	Card     *CardView     `json:"card,omitempty"`
	Attack   *AttackResult `json:"attack,omitempty"`
	Closed   bool          `json:"closed,omitempty"`
}

// RequireTurn is the single turn gate every gated action passes through.
func RequireTurn(tx *Txn, actorID string) error {
	if !tx.IsMember(actorID) {
		return ErrNotAMember
	}
	if tx.TurnHolder() != actorID {
		return ErrNotYourTurn
	}
	return nil
}

// Dispatcher is the caller layer between transports and sessions: it resolves
// the session, applies the turn gate and runs the primitive under the session lock.
type Dispatcher struct {
	registry *Registry
	banlist  cards.Banlist
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher over registry. A non-nil banlist rejects
// illegal decks on join.
func NewDispatcher(registry *Registry, banlist cards.Banlist, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		registry: registry,
		banlist:  banlist,
		logger:   logger,
	}
}

// Registry returns the underlying session table.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Create opens a new empty session.
func (d *Dispatcher) Create() string {
	return d.registry.Create()
}

// Snapshot returns the current view of a session.
func (d *Dispatcher) Snapshot(sessionID string) (Result, error) {
	session, err := d.registry.Get(sessionID)
	if err != nil {
		return Result{}, err
	}
	view := session.Snapshot()
	return Result{View: view, Checksum: view.Checksum()}, nil
}

// checkDeck enforces the deck size limits and copy limits before any cards are
// built. A nil banlist still caps every card at cards.MaxCopies.
func (d *Dispatcher) checkDeck(list cards.DeckList) error {
	if err := list.CheckSize(); err != nil {
		return fmt.Errorf("%w: %v", ErrIllegalDeck, err)
	}
	if violations := d.banlist.Validate(list); len(violations) > 0 {
		return fmt.Errorf("%w: %s", ErrIllegalDeck, violations[0])
	}
	return nil
}

// Dispatch applies action to the session. Errors are returned unchanged in kind
// so callers can match them with errors.Is.
func (d *Dispatcher) Dispatch(sessionID string, action Action) (Result, error) {
	if action.ActorID == "" {
		return Result{}, ErrInvalidActor
	}
	if action.Type == ActionLeave {
		dep, err := d.registry.Leave(sessionID, action.ActorID)
		if err != nil {
			return Result{}, err
		}
		return Result{View: dep.View, Checksum: dep.View.Checksum(), Closed: dep.Closed}, nil
	}
	if action.Type == ActionJoin {
		if err := d.checkDeck(action.Deck); err != nil {
			return Result{}, err
		}
	}

	session, err := d.registry.Get(sessionID)
	if err != nil {
		return Result{}, err
	}

	var res Result
	view, err := session.Exec(func(tx *Txn) error {
		if TurnGated(action.Type) {
			if err := RequireTurn(tx, action.ActorID); err != nil {
				return err
			}
		}
		return d.apply(tx, action, &res)
	})
	if err != nil {
		if !errors.Is(err, ErrNotYourTurn) && !errors.Is(err, ErrUnknownAction) {
			d.logger.Debug("action rejected",
				zap.String("session_id", sessionID),
				zap.String("actor_id", action.ActorID),
				zap.String("action", string(action.Type)),
				zap.Error(err),
			)
		}
		return Result{}, err
	}

	res.View = view
	res.Checksum = view.Checksum()
	return res, nil
}

func (d *Dispatcher) apply(tx *Txn, action Action, res *Result) error {
	switch action.Type {
	case ActionJoin:
		_, err := tx.Join(action.ActorID, action.DisplayName, action.Deck)
		return err
	case ActionDraw:
		card, err := tx.DrawCard(action.ActorID)
		if err != nil {
			return err
		}
		res.Card = &card
		return nil
	case ActionPlayCard:
		return tx.PlayCard(action.ActorID, action.CardID)
	case ActionMoveToGraveyard:
		return tx.MoveCard(action.ActorID, action.CardID, ZoneGraveyard)
	case ActionMoveToBanished:
		return tx.MoveCard(action.ActorID, action.CardID, ZoneBanished)
	case ActionAttack:
		result, err := tx.Attack(action.ActorID, action.CardID, action.TargetID)
		if err != nil {
			return err
		}
		res.Attack = &result
		return nil
	case ActionAdjustLife:
		return tx.AdjustLifePoints(action.ActorID, action.Delta)
	case ActionShuffle:
		return tx.Shuffle(action.ActorID)
	case ActionEndTurn:
		tx.EndTurn()
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action.Type)
	}
}

// LeaveAll removes actorID from every session, as a disconnect does.
func (d *Dispatcher) LeaveAll(actorID string) []Departure {
	departures := d.registry.LeaveAll(actorID)
	if len(departures) > 0 {
		d.logger.Info("actor disconnected",
			zap.String("actor_id", actorID),
			zap.Int("sessions", len(departures)),
		)
	}
	return departures
}
