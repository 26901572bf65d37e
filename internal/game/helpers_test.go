package game

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yugisim/duel-server-go/internal/cards"
	"go.uber.org/zap/zaptest"
)

// testCatalog knows forty numbered vanilla monsters plus a few named cards.
// "Vanilla NN" has ATK NN*100 and DEF NN*50.
func testCatalog() *cards.Catalog {
	catalog := cards.NewCatalog(
		cards.Metadata{Name: "Blue-Eyes White Dragon", Kind: cards.KindMonster, Category: cards.CategoryNormal,
			Attribute: "LIGHT", Level: cards.IntPtr(8), Attack: cards.IntPtr(3000), Defense: cards.IntPtr(2500)},
		cards.Metadata{Name: "Dark Magician", Kind: cards.KindMonster, Category: cards.CategoryNormal,
			Attribute: "DARK", Level: cards.IntPtr(7), Attack: cards.IntPtr(2500), Defense: cards.IntPtr(2100)},
		cards.Metadata{Name: "Pot of Greed", Kind: cards.KindSpell, Category: cards.CategoryNormal,
			Effect: "Draw 2 cards."},
		cards.Metadata{Name: "Decode Talker", Kind: cards.KindMonster, Category: cards.CategoryLink,
			Attribute: "DARK", Attack: cards.IntPtr(2300)},
		cards.Metadata{Name: "Elemental HERO Flame Wingman", Kind: cards.KindMonster, Category: cards.CategoryFusion,
			Attribute: "WIND", Level: cards.IntPtr(6), Attack: cards.IntPtr(2100), Defense: cards.IntPtr(1200)},
	)
	for i := 1; i <= 40; i++ {
		catalog.Add(cards.Metadata{
			Name:     vanilla(i),
			Kind:     cards.KindMonster,
			Category: cards.CategoryNormal,
			Level:    cards.IntPtr(4),
			Attack:   cards.IntPtr(i * 100),
			Defense:  cards.IntPtr(i * 50),
		})
	}
	return catalog
}

func vanilla(i int) string {
	return fmt.Sprintf("Vanilla %02d", i)
}

// vanillaDeck lists Vanilla 01..n, one copy each.
func vanillaDeck(n int) cards.DeckList {
	list := cards.DeckList{Name: "vanilla"}
	for i := 1; i <= n; i++ {
		list.Main = append(list.Main, cards.Entry{Name: vanilla(i), Count: 1})
	}
	return list
}

func newSeededRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Shuffle = false
	return opts
}

func newTestSession(t *testing.T) *GameSession {
	t.Helper()
	return NewSession("session-1", testCatalog(), testOptions(), nil, zaptest.NewLogger(t))
}

// newStartedSession seats p1 and p2 with forty-card vanilla decks.
func newStartedSession(t *testing.T) *GameSession {
	t.Helper()
	s := newTestSession(t)
	_, err := s.Join("p1", "Alice", vanillaDeck(40))
	require.NoError(t, err)
	_, err = s.Join("p2", "Bob", vanillaDeck(40))
	require.NoError(t, err)
	return s
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	logger := zaptest.NewLogger(t)
	return NewDispatcher(NewRegistry(testCatalog(), testOptions(), logger), nil, logger)
}

func requireInvariants(t *testing.T, view SessionView) {
	t.Helper()
	require.LessOrEqual(t, len(view.Players), MaxPlayers)
	if view.Started {
		require.Len(t, view.Players, MaxPlayers)
		require.Contains(t, view.Players, view.TurnHolder)
	}
	if view.TurnHolder != "" {
		require.Contains(t, view.Players, view.TurnHolder)
	}
	require.Len(t, view.PlayerOrder, len(view.Players))
}

func poolSize(p PlayerView) int {
	return p.DeckCount + p.ExtraCount + p.SideCount +
		len(p.Hand) + len(p.Field) + len(p.Graveyard) + len(p.Banished)
}
