package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoom(t *testing.T, cfg *Config, names ...string) *Room {
	t.Helper()

	room := newRoom("TESTAA", cfg)
	for _, name := range names {
		_, err := room.Join(name)
		require.NoError(t, err)
	}
	return room
}

func TestJoinValidation(t *testing.T) {
	room := newTestRoom(t, testConfig())

	_, err := room.Join("   ")
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = room.Join("this name is way way too long")
	assert.ErrorIs(t, err, ErrNameTooLong)

	name, err := room.Join("  Alice  ")
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)
}

func TestJoinEscapesHTML(t *testing.T) {
	room := newTestRoom(t, testConfig())

	name, err := room.Join("<b>Eve")
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;Eve", name)

	// Names are length-checked after escaping, so markup-heavy input
	// can overflow the limit even when the raw input fits.
	_, err = room.Join("<b><i>Eve</i></b>")
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestJoinSameNameIsReconnect(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob")

	_, err := room.Join("Alice")
	require.NoError(t, err)

	snap := room.Snapshot()
	assert.Len(t, snap.Players, 2)
	assert.Equal(t, "Alice", snap.CurrentPlayer, "reconnect must not disturb the turn")
}

func TestDrawAdvancesTurn(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob")

	before := room.Snapshot().DeckCount

	_, err := room.Draw("Alice")
	require.NoError(t, err)
	assert.Equal(t, "Bob", room.Snapshot().CurrentPlayer)

	_, err = room.Draw("Bob")
	require.NoError(t, err)

	snap := room.Snapshot()
	assert.Equal(t, "Alice", snap.CurrentPlayer)
	assert.Equal(t, before-2, snap.DeckCount)
	assert.Equal(t, 1, snap.Stats["Alice"].CardsDrawn)
	assert.Equal(t, 1, snap.Stats["Bob"].CardsDrawn)
}

func TestDrawOutOfTurn(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob")

	before := room.Snapshot()

	_, err := room.Draw("Bob")
	var notYourTurn *NotYourTurnError
	require.ErrorAs(t, err, &notYourTurn)
	assert.Equal(t, "Alice", notYourTurn.CurrentPlayer)

	after := room.Snapshot()
	assert.Equal(t, before.DeckCount, after.DeckCount)
	assert.Equal(t, before.CurrentPlayerIndex, after.CurrentPlayerIndex)
}

func TestDrawUnknownPlayerIsOutOfTurn(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice")

	_, err := room.Draw("Mallory")
	var notYourTurn *NotYourTurnError
	require.ErrorAs(t, err, &notYourTurn)
	assert.Equal(t, "Alice", notYourTurn.CurrentPlayer)
}

func TestDrawRecyclesDiscard(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob")

	room.mu.Lock()
	room.deck = nil
	room.discard = nil
	for _, title := range []string{"One", "Two", "Three", "Four", "Five"} {
		room.discard = append(room.discard, DrawnCard{
			Card:        Card{Title: title, Text: "Drink."},
			DiscardedBy: "Bob",
		})
	}
	room.mu.Unlock()

	_, err := room.Draw("Alice")
	require.NoError(t, err)

	snap := room.Snapshot()
	assert.Equal(t, 4, snap.DeckCount, "five recycled, one drawn")
	assert.Equal(t, 1, snap.DiscardCount, "only the fresh draw remains discarded")
	assert.Contains(t, snap.Logs, "Deck reshuffled!")
}

func TestDrawBothPilesEmpty(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice")

	room.mu.Lock()
	room.deck = nil
	room.discard = nil
	room.mu.Unlock()

	_, err := room.Draw("Alice")
	assert.ErrorIs(t, err, ErrDeckExhausted)
}

func TestCardConservation(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob")

	total := room.Snapshot().DeckCount
	names := []string{"Alice", "Bob"}

	for i := 0; i < 20; i++ {
		_, err := room.Draw(names[i%2])
		require.NoError(t, err)

		snap := room.Snapshot()
		assert.Equal(t, total, snap.DeckCount+snap.DiscardCount)
	}
}

func TestDrawResolvesTarget(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob")

	room.mu.Lock()
	room.deck = []Card{{Title: "Thumb War", Text: "Challenge {player} to a thumb war."}}
	room.mu.Unlock()

	card, err := room.Draw("Alice")
	require.NoError(t, err)

	assert.Equal(t, "Bob", card.TargetPlayer, "the only other player must be chosen")
	assert.Equal(t, "Challenge Bob to a thumb war.", card.Text)
	assert.Contains(t, room.Snapshot().Logs, "Alice drew: Thumb War -> Bob")
}

func TestDrawSoloLeavesTokenUnresolved(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice")

	room.mu.Lock()
	room.deck = []Card{{Title: "Thumb War", Text: "Challenge {player} to a thumb war."}}
	room.mu.Unlock()

	card, err := room.Draw("Alice")
	require.NoError(t, err)

	assert.Empty(t, card.TargetPlayer)
	assert.Contains(t, card.Text, playerToken)
	assert.Equal(t, "Alice", room.Snapshot().CurrentPlayer, "sole player keeps the turn")
}

func TestDrawStartsTimer(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice")

	room.mu.Lock()
	room.deck = []Card{{Title: "Statue", Text: "Freeze.", TimerDuration: 20}}
	room.mu.Unlock()

	_, err := room.Draw("Alice")
	require.NoError(t, err)

	snap := room.Snapshot()
	require.Len(t, snap.Timers, 1)
	timer := snap.Timers[0]
	assert.Equal(t, "Alice: Statue", timer.Label)
	assert.Equal(t, "Alice", timer.Owner)
	assert.Equal(t, 20, timer.Duration)
	assert.Greater(t, timer.Remaining, 0.0)
	assert.LessOrEqual(t, timer.Remaining, 20.0)
	assert.Contains(t, snap.Logs, "Timer started: 20s")
}

func TestTimerRemainingMonotonic(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice")

	room.mu.Lock()
	room.timers = []Timer{{
		id:       "t1",
		label:    "Alice: Statue",
		duration: 20,
		endTime:  time.Now().Add(20 * time.Second),
		owner:    "Alice",
	}}
	room.mu.Unlock()

	first := room.Snapshot().Timers[0].Remaining
	time.Sleep(20 * time.Millisecond)
	second := room.Snapshot().Timers[0].Remaining

	assert.LessOrEqual(t, second, first)
}

func TestExpiredTimerShownWithinGrace(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice")

	room.mu.Lock()
	room.timers = []Timer{{
		id:      "t1",
		label:   "Alice: Statue",
		endTime: time.Now().Add(-time.Second),
		owner:   "Alice",
	}}
	room.mu.Unlock()

	snap := room.Snapshot()
	require.Len(t, snap.Timers, 1)
	assert.Equal(t, 0.0, snap.Timers[0].Remaining, "expired timers clamp to zero")
	assert.Equal(t, 1, snap.Stats["Alice"].TimersCompleted)

	// Expiry is lazy: the timer is gone from the authoritative store
	// now, so it never reappears.
	room.mu.Lock()
	stored := len(room.timers)
	room.mu.Unlock()
	assert.Zero(t, stored)
}

func TestExpiredTimerHiddenAfterGrace(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice")

	room.mu.Lock()
	room.timers = []Timer{{
		id:      "t1",
		endTime: time.Now().Add(-timerGrace - time.Second),
		owner:   "Alice",
	}}
	room.mu.Unlock()

	assert.Empty(t, room.Snapshot().Timers)
}

func TestClearTimer(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice")

	room.mu.Lock()
	room.timers = []Timer{
		{id: "t1", endTime: time.Now().Add(time.Minute), owner: "Alice"},
		{id: "t2", endTime: time.Now().Add(time.Minute), owner: "Alice"},
	}
	room.mu.Unlock()

	room.ClearTimer("t1")

	snap := room.Snapshot()
	require.Len(t, snap.Timers, 1)
	assert.Equal(t, "t2", snap.Timers[0].ID)
	assert.Zero(t, snap.Stats["Alice"].TimersCompleted, "manual clears are not completions")
}

func TestKickRequiresHost(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob", "Carol")

	assert.ErrorIs(t, room.Kick("Carol", "Bob"), ErrNotHost)
	assert.ErrorIs(t, room.Kick("Alice", "Alice"), ErrSelfKick)
	assert.ErrorIs(t, room.Kick("Mallory", "Alice"), ErrUnknownPlayer)
}

func TestKickRemovesPlayerAndStats(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob", "Carol")

	require.NoError(t, room.Kick("Bob", "Alice"))

	snap := room.Snapshot()
	assert.Len(t, snap.Players, 2)
	assert.NotContains(t, snap.Stats, "Bob")
}

func TestKickCurrentPlayerKeepsIndexValid(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob", "Carol")

	// Advance to Carol, then kick her.
	_, err := room.Draw("Alice")
	require.NoError(t, err)
	_, err = room.Draw("Bob")
	require.NoError(t, err)
	require.Equal(t, "Carol", room.Snapshot().CurrentPlayer)

	require.NoError(t, room.Kick("Carol", "Alice"))

	snap := room.Snapshot()
	assert.Less(t, snap.CurrentPlayerIndex, len(snap.Players))
	assert.Equal(t, "Alice", snap.CurrentPlayer, "index past the end clamps to the host")
}

func TestKickEarlierPlayerPreservesCurrent(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob", "Carol")

	_, err := room.Draw("Alice")
	require.NoError(t, err)
	require.Equal(t, "Bob", room.Snapshot().CurrentPlayer)

	require.NoError(t, room.Leave("Alice"))

	assert.Equal(t, "Bob", room.Snapshot().CurrentPlayer)
}

func TestKickOnlyOtherPlayer(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob")

	_, err := room.Draw("Alice")
	require.NoError(t, err)
	require.NoError(t, room.Kick("Bob", "Alice"))

	snap := room.Snapshot()
	assert.Equal(t, 0, snap.CurrentPlayerIndex)
	assert.Equal(t, "Alice", snap.CurrentPlayer)

	// The sole remaining player always has the turn.
	for i := 0; i < 3; i++ {
		_, err := room.Draw("Alice")
		require.NoError(t, err)
	}
}

func TestLeave(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob")

	assert.ErrorIs(t, room.Leave("Mallory"), ErrUnknownPlayer)

	require.NoError(t, room.Leave("Bob"))
	snap := room.Snapshot()
	assert.Len(t, snap.Players, 1)
	assert.Contains(t, snap.Logs, "Bob left the pack.")
}

func TestPromoteHost(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob", "Carol")

	assert.ErrorIs(t, room.PromoteHost("Carol", "Bob"), ErrNotHost)
	assert.ErrorIs(t, room.PromoteHost("Mallory", "Alice"), ErrUnknownPlayer)

	require.NoError(t, room.PromoteHost("Carol", "Alice"))

	snap := room.Snapshot()
	require.Equal(t, "Carol", snap.Players[0].Name)
	assert.Equal(t, []PlayerView{{Name: "Carol"}, {Name: "Alice"}, {Name: "Bob"}}, snap.Players)
	assert.Equal(t, "Alice", snap.CurrentPlayer, "promotion must not move the turn")
}

func TestUpdateShotsClampsAtZero(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice")

	assert.ErrorIs(t, room.UpdateShots("Mallory", 1), ErrUnknownPlayer)

	require.NoError(t, room.UpdateShots("Alice", 3))
	assert.Equal(t, 3, room.Snapshot().Stats["Alice"].Shots)

	require.NoError(t, room.UpdateShots("Alice", -10))
	assert.Equal(t, 0, room.Snapshot().Stats["Alice"].Shots)

	require.NoError(t, room.UpdateShots("Alice", -1))
	assert.Equal(t, 0, room.Snapshot().Stats["Alice"].Shots)
}

func TestReset(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob")

	fullDeck := room.Snapshot().DeckCount

	_, err := room.Draw("Alice")
	require.NoError(t, err)
	require.NoError(t, room.UpdateShots("Alice", 2))
	room.End()

	room.Reset(false)

	snap := room.Snapshot()
	assert.Equal(t, fullDeck, snap.DeckCount)
	assert.Zero(t, snap.DiscardCount)
	assert.Empty(t, snap.Timers)
	assert.Nil(t, snap.LastCard)
	assert.False(t, snap.GameOver)
	assert.Contains(t, snap.Logs, "Game reset!")
	assert.Equal(t, 2, snap.Stats["Alice"].Shots, "stats survive a plain reset")

	room.Reset(true)
	assert.Zero(t, room.Snapshot().Stats["Alice"].Shots)
}

func TestEndKeepsStats(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob")

	require.NoError(t, room.UpdateShots("Bob", 4))
	room.End()

	snap := room.Snapshot()
	assert.True(t, snap.GameOver)
	assert.Equal(t, 4, snap.Stats["Bob"].Shots, "summary view needs the stats")
}

func TestPendingCardFlow(t *testing.T) {
	cfg := testConfig()
	cfg.confirmDraws = true
	room := newTestRoom(t, cfg, "Alice", "Bob")

	_, err := room.Draw("Alice")
	require.NoError(t, err)

	snap := room.Snapshot()
	require.NotNil(t, snap.PendingCard)
	assert.Equal(t, "Alice", snap.PendingCard.Player)
	assert.Equal(t, "Alice", snap.CurrentPlayer, "turn is held until confirmation")

	_, err = room.Draw("Alice")
	assert.ErrorIs(t, err, ErrCardPending)

	assert.ErrorIs(t, room.Confirm("Bob"), ErrNotYourCard)

	require.NoError(t, room.Confirm("Alice"))
	snap = room.Snapshot()
	assert.Nil(t, snap.PendingCard)
	assert.Equal(t, "Bob", snap.CurrentPlayer)

	assert.ErrorIs(t, room.Confirm("Bob"), ErrNoPendingCard)
}

func TestKickPendingDrawerClearsPending(t *testing.T) {
	cfg := testConfig()
	cfg.confirmDraws = true
	room := newTestRoom(t, cfg, "Alice", "Bob")

	_, err := room.Draw("Alice")
	require.NoError(t, err)

	require.NoError(t, room.Leave("Alice"))

	snap := room.Snapshot()
	assert.Nil(t, snap.PendingCard)
	assert.Equal(t, "Bob", snap.CurrentPlayer)
}

func TestSnapshotLogsBounded(t *testing.T) {
	room := newTestRoom(t, testConfig(), "Alice", "Bob")
	names := []string{"Alice", "Bob"}

	for i := 0; i < 30; i++ {
		_, err := room.Draw(names[i%2])
		require.NoError(t, err)
	}

	snap := room.Snapshot()
	assert.Len(t, snap.Logs, snapshotLogTail)

	room.mu.Lock()
	retained := len(room.logs)
	room.mu.Unlock()
	assert.LessOrEqual(t, retained, room.maxLog)
}
