package game

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yugisim/duel-server-go/internal/cards"
	"go.uber.org/zap/zaptest"
)

func joinBoth(t *testing.T, d *Dispatcher, id string) Result {
	t.Helper()
	_, err := d.Dispatch(id, Action{Type: ActionJoin, ActorID: "p1", DisplayName: "Alice", Deck: vanillaDeck(40)})
	require.NoError(t, err)
	res, err := d.Dispatch(id, Action{Type: ActionJoin, ActorID: "p2", DisplayName: "Bob", Deck: vanillaDeck(40)})
	require.NoError(t, err)
	return res
}

func TestDispatchSecondJoinStartsSession(t *testing.T) {
	d := newTestDispatcher(t)
	id := d.Create()

	res, err := d.Dispatch(id, Action{Type: ActionJoin, ActorID: "p1", DisplayName: "Alice", Deck: vanillaDeck(40)})
	require.NoError(t, err)
	assert.False(t, res.View.Started)
	assert.Len(t, res.View.Players["p1"].Hand, 5)
	assert.Equal(t, res.View.Checksum(), res.Checksum)

	res = joinBoth(t, d, id)
	assert.True(t, res.View.Started)
	assert.Equal(t, "p1", res.View.TurnHolder)
	assert.Len(t, res.View.Players["p1"].Hand, 5)
	assert.Len(t, res.View.Players["p2"].Hand, 5)
}

func TestDispatchPlayCardMovesToField(t *testing.T) {
	d := newTestDispatcher(t)
	id := d.Create()
	res := joinBoth(t, d, id)
	card := res.View.Players["p1"].Hand[0]

	res, err := d.Dispatch(id, Action{Type: ActionPlayCard, ActorID: "p1", CardID: card.InstanceID})
	require.NoError(t, err)
	assert.Len(t, res.View.Players["p1"].Hand, 4)
	require.Len(t, res.View.Players["p1"].Field, 1)
	assert.Equal(t, card.InstanceID, res.View.Players["p1"].Field[0].InstanceID)
}

func TestDispatchTurnGate(t *testing.T) {
	d := newTestDispatcher(t)
	id := d.Create()
	res := joinBoth(t, d, id)
	p2Card := res.View.Players["p2"].Hand[0]

	gated := []Action{
		{Type: ActionDraw, ActorID: "p2"},
		{Type: ActionPlayCard, ActorID: "p2", CardID: p2Card.InstanceID},
		{Type: ActionMoveToGraveyard, ActorID: "p2", CardID: p2Card.InstanceID},
		{Type: ActionMoveToBanished, ActorID: "p2", CardID: p2Card.InstanceID},
		{Type: ActionAttack, ActorID: "p2", CardID: p2Card.InstanceID},
		{Type: ActionShuffle, ActorID: "p2"},
		{Type: ActionEndTurn, ActorID: "p2"},
	}
	for _, action := range gated {
		t.Run(string(action.Type), func(t *testing.T) {
			_, err := d.Dispatch(id, action)
			assert.ErrorIs(t, err, ErrNotYourTurn)
		})
	}

	after, err := d.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, res.Checksum, after.Checksum)

	// Life point adjustment is not turn gated.
	res, err = d.Dispatch(id, Action{Type: ActionAdjustLife, ActorID: "p2", Delta: -500})
	require.NoError(t, err)
	assert.Equal(t, 7500, res.View.Players["p2"].LifePoints)

	_, err = d.Dispatch(id, Action{Type: ActionDraw, ActorID: "p9"})
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestDispatchEndTurnHandsOver(t *testing.T) {
	d := newTestDispatcher(t)
	id := d.Create()
	joinBoth(t, d, id)

	res, err := d.Dispatch(id, Action{Type: ActionEndTurn, ActorID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, "p2", res.View.TurnHolder)

	res, err = d.Dispatch(id, Action{Type: ActionDraw, ActorID: "p2"})
	require.NoError(t, err)
	require.NotNil(t, res.Card)
	assert.Equal(t, vanilla(6), res.Card.Name)
	assert.Len(t, res.View.Players["p2"].Hand, 6)

	_, err = d.Dispatch(id, Action{Type: ActionDraw, ActorID: "p1"})
	assert.ErrorIs(t, err, ErrNotYourTurn)
}

func TestDispatchAttack(t *testing.T) {
	d := newTestDispatcher(t)
	id := d.Create()
	res := joinBoth(t, d, id)
	attacker := res.View.Players["p1"].Hand[4]

	_, err := d.Dispatch(id, Action{Type: ActionPlayCard, ActorID: "p1", CardID: attacker.InstanceID})
	require.NoError(t, err)

	res, err = d.Dispatch(id, Action{Type: ActionAttack, ActorID: "p1", CardID: attacker.InstanceID})
	require.NoError(t, err)
	require.NotNil(t, res.Attack)
	assert.Equal(t, 500, res.Attack.Damage)
	assert.Equal(t, 7500, res.View.Players["p2"].LifePoints)
}

func TestDispatchLastLeaveClosesSession(t *testing.T) {
	d := newTestDispatcher(t)
	id := d.Create()
	before := joinBoth(t, d, id)

	res, err := d.Dispatch(id, Action{Type: ActionLeave, ActorID: "p1"})
	require.NoError(t, err)
	assert.False(t, res.Closed)
	assert.False(t, res.View.Started)
	assert.Equal(t, "p2", res.View.TurnHolder)
	assert.Equal(t, before.View.Players["p2"], res.View.Players["p2"])

	res, err = d.Dispatch(id, Action{Type: ActionLeave, ActorID: "p2"})
	require.NoError(t, err)
	assert.True(t, res.Closed)
	assert.Empty(t, res.View.Players)

	_, err = d.Dispatch(id, Action{Type: ActionJoin, ActorID: "p1", Deck: vanillaDeck(40)})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, d.Registry().Len())
}

func TestDispatchAdjustLifeClampsAtZero(t *testing.T) {
	d := newTestDispatcher(t)
	id := d.Create()
	joinBoth(t, d, id)

	res, err := d.Dispatch(id, Action{Type: ActionAdjustLife, ActorID: "p1", Delta: -9000})
	require.NoError(t, err)
	assert.Equal(t, 0, res.View.Players["p1"].LifePoints)
}

func TestDispatchErrors(t *testing.T) {
	d := newTestDispatcher(t)

	_, err := d.Dispatch("missing", Action{Type: ActionJoin, ActorID: "p1"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	id := d.Create()
	_, err = d.Dispatch(id, Action{Type: ActionJoin})
	assert.ErrorIs(t, err, ErrInvalidActor)

	_, err = d.Dispatch(id, Action{Type: "summon_exodia", ActorID: "p1"})
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = d.Snapshot("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDispatchBanlist(t *testing.T) {
	logger := zaptest.NewLogger(t)
	banlist := cards.Banlist{"Pot of Greed": 0}
	d := NewDispatcher(NewRegistry(testCatalog(), testOptions(), logger), banlist, logger)
	id := d.Create()

	list := vanillaDeck(39)
	list.Main = append(list.Main, cards.Entry{Name: "Pot of Greed", Count: 1})
	_, err := d.Dispatch(id, Action{Type: ActionJoin, ActorID: "p1", Deck: list})
	assert.ErrorIs(t, err, ErrIllegalDeck)

	_, err = d.Dispatch(id, Action{Type: ActionJoin, ActorID: "p1", Deck: vanillaDeck(40)})
	assert.NoError(t, err)
}

func TestDispatchRejectsOversizedDecks(t *testing.T) {
	d := newTestDispatcher(t)
	id := d.Create()

	tooMany := cards.DeckList{Main: []cards.Entry{{Name: vanilla(1), Count: 2_000_000}}}
	_, err := d.Dispatch(id, Action{Type: ActionJoin, ActorID: "p1", Deck: tooMany})
	assert.ErrorIs(t, err, ErrIllegalDeck)

	// Negative counts cannot offset an oversized entry.
	offset := cards.DeckList{Main: []cards.Entry{
		{Name: vanilla(1), Count: 2_000_000},
		{Name: vanilla(1), Count: -1_999_999},
	}}
	_, err = d.Dispatch(id, Action{Type: ActionJoin, ActorID: "p1", Deck: offset})
	assert.ErrorIs(t, err, ErrIllegalDeck)

	fourCopies := vanillaDeck(10)
	fourCopies.Main = append(fourCopies.Main, cards.Entry{Name: vanilla(1), Count: 3})
	_, err = d.Dispatch(id, Action{Type: ActionJoin, ActorID: "p1", Deck: fourCopies})
	assert.ErrorIs(t, err, ErrIllegalDeck)

	wide := vanillaDeck(40)
	for i := 1; i <= 21; i++ {
		wide.Main = append(wide.Main, cards.Entry{Name: "Unknown " + vanilla(i), Count: 1})
	}
	_, err = d.Dispatch(id, Action{Type: ActionJoin, ActorID: "p1", Deck: wide})
	assert.ErrorIs(t, err, ErrIllegalDeck)

	extra := vanillaDeck(40)
	extra.Extra = []cards.Entry{{Name: "Decode Talker", Count: 3}}
	for i := 1; i <= 13; i++ {
		extra.Extra = append(extra.Extra, cards.Entry{Name: "Fusion " + vanilla(i), Count: 1})
	}
	_, err = d.Dispatch(id, Action{Type: ActionJoin, ActorID: "p1", Deck: extra})
	assert.ErrorIs(t, err, ErrIllegalDeck)

	session, err := d.Registry().Get(id)
	require.NoError(t, err)
	assert.Empty(t, session.Snapshot().Players)

	res, err := d.Dispatch(id, Action{Type: ActionJoin, ActorID: "p1", Deck: vanillaDeck(40)})
	require.NoError(t, err)
	assert.Equal(t, 35, res.View.Players["p1"].DeckCount)
}

func TestDispatchJournalsEverySnapshot(t *testing.T) {
	d := newTestDispatcher(t)
	id := d.Create()
	res := joinBoth(t, d, id)

	session, err := d.Registry().Get(id)
	require.NoError(t, err)
	journal := session.Journal()
	assert.Equal(t, 2, journal.Size())

	latest, ok := journal.Latest()
	require.True(t, ok)
	assert.Equal(t, res.Checksum, latest.Checksum)

	// Rejected actions leave no entry.
	_, err = d.Dispatch(id, Action{Type: ActionEndTurn, ActorID: "p2"})
	require.Error(t, err)
	assert.Equal(t, 2, journal.Size())
}

func TestParseActionType(t *testing.T) {
	for in, want := range map[string]ActionType{
		"join":      ActionJoin,
		"END_TURN":  ActionEndTurn,
		"play-card": ActionPlayCard,
		" draw ":    ActionDraw,
	} {
		got, err := ParseActionType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseActionType("pass_priority")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDispatchConcurrentSessionsAndActors(t *testing.T) {
	d := newTestDispatcher(t)
	ids := []string{d.Create(), d.Create(), d.Create()}
	for _, id := range ids {
		joinBoth(t, d, id)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for _, actor := range []string{"p1", "p2"} {
			wg.Add(1)
			go func(id, actor string) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					res, err := d.Dispatch(id, Action{Type: ActionEndTurn, ActorID: actor})
					if err != nil {
						assert.ErrorIs(t, err, ErrNotYourTurn)
						continue
					}
					assert.NotEqual(t, actor, res.View.TurnHolder)
				}
			}(id, actor)
		}
	}
	wg.Wait()

	for _, id := range ids {
		res, err := d.Snapshot(id)
		require.NoError(t, err)
		assert.True(t, res.View.Started)
		assert.Contains(t, []string{"p1", "p2"}, res.View.TurnHolder)
	}
}
