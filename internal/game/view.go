package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// SessionView is the read-only projection of a session broadcast after every
// mutation. It shares no memory with the live session.
type SessionView struct {
	SessionID   string                `json:"session_id"`
	Started     bool                  `json:"started"`
	TurnHolder  string                `json:"turn_holder,omitempty"`
	Turn        int                   `json:"turn"`
	PlayerOrder []string              `json:"player_order"`
	Players     map[string]PlayerView `json:"players"`
}

// Player returns the view of one member.
func (v SessionView) Player(actorID string) (PlayerView, bool) {
	p, ok := v.Players[actorID]
	return p, ok
}

// Checksum computes a SHA-256 over a canonical rendering of the view. Two views
// with the same observable state always hash the same, independent of map order.
func (v SessionView) Checksum() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "SESSION:%s|%t|%s|%d\n", v.SessionID, v.Started, v.TurnHolder, v.Turn)

	ids := make([]string, 0, len(v.Players))
	for id := range v.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p := v.Players[id]
		fmt.Fprintf(&buf, "PLAYER:%s|%s|%d|%d|%d|%d\n",
			id, p.DisplayName, p.LifePoints, p.DeckCount, p.ExtraCount, p.SideCount)
		writeZone(&buf, "HAND", p.Hand)
		writeZone(&buf, "FIELD", p.Field)
		writeZone(&buf, "GRAVEYARD", p.Graveyard)
		writeZone(&buf, "BANISHED", p.Banished)
	}

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}

// Zone contents keep their order: position in hand and field is visible state.
func writeZone(buf *bytes.Buffer, label string, pile []CardView) {
	for _, c := range pile {
		fmt.Fprintf(buf, "  %s:%s|%s\n", label, c.InstanceID, c.Name)
	}
}
