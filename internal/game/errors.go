package game

import "errors"

// Outcomes reported by the engine. None of them leave partial state behind:
// every operation validates before it mutates.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session is full")
	ErrNotAMember      = errors.New("actor is not a member of this session")
	ErrCardNotInHand   = errors.New("card is not in hand")
	ErrCardNotFound    = errors.New("card not found")
	ErrDeckEmpty       = errors.New("deck is empty")
	ErrNotYourTurn     = errors.New("it's not your turn")
	ErrInvalidZone     = errors.New("invalid target zone")
	ErrInvalidAttack   = errors.New("invalid attack")
	ErrInvalidActor    = errors.New("actor id is required")
	ErrUnknownAction   = errors.New("unknown action")
	ErrIllegalDeck     = errors.New("deck violates the banlist")
)
