package game

import "github.com/yugisim/duel-server-go/internal/cards"

// Txn is the view of a GameSession handed to GameSession.Exec. Its methods run
// with the session lock already held and must not escape the callback.
type Txn struct {
	s *GameSession
}

// SessionID returns the id of the locked session.
func (tx *Txn) SessionID() string { return tx.s.ID }

// IsMember reports whether actorID currently holds a seat.
func (tx *Txn) IsMember(actorID string) bool {
	_, ok := tx.s.players[actorID]
	return ok
}

// TurnHolder returns the actor allowed to take turn-gated actions.
func (tx *Txn) TurnHolder() string { return tx.s.turnHolder }

// Started reports whether both seats are filled.
func (tx *Txn) Started() bool { return tx.s.started }

// PlayerCount returns the number of seated players.
func (tx *Txn) PlayerCount() int { return len(tx.s.players) }

// Closed reports whether the session emptied.
func (tx *Txn) Closed() bool { return tx.s.closed }

// Join seats actorID, dealing a deck built from list. An existing member gets its
// Player back untouched; a third actor gets ErrSessionFull.
func (tx *Txn) Join(actorID, displayName string, list cards.DeckList) (*Player, error) {
	return tx.s.join(actorID, displayName, list)
}

// Leave removes actorID. Unknown actors are ignored.
func (tx *Txn) Leave(actorID string) { tx.s.leave(actorID) }

// EndTurn passes the turn to the other player.
func (tx *Txn) EndTurn() { tx.s.endTurn() }

func (tx *Txn) PlayCard(actorID, instanceID string) error {
	return tx.s.playCard(actorID, instanceID)
}

func (tx *Txn) DrawCard(actorID string) (CardView, error) {
	return tx.s.drawCard(actorID)
}

func (tx *Txn) MoveCard(actorID, instanceID string, target Zone) error {
	return tx.s.moveCard(actorID, instanceID, target)
}

func (tx *Txn) AdjustLifePoints(actorID string, delta int) error {
	return tx.s.adjustLifePoints(actorID, delta)
}

// Attack resolves a battle. An empty targetID attacks the opponent directly.
func (tx *Txn) Attack(actorID, attackerID, targetID string) (AttackResult, error) {
	return tx.s.attack(actorID, attackerID, targetID)
}

func (tx *Txn) Shuffle(actorID string) error {
	return tx.s.shuffle(actorID)
}
