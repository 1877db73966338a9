package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDeckWeighting(t *testing.T) {
	deck := generateDeck()

	interactive := len(interactiveCards())
	party := len(partyCards("red"))
	require.Len(t, deck, 2*(interactive+party)+party)

	// Interactive cards appear twice, party cards three times.
	counts := make(map[string]int)
	for _, c := range deck {
		counts[c.Title]++
	}
	for _, c := range interactiveCards() {
		assert.Equal(t, 2, counts[c.Title], "interactive card %q", c.Title)
	}
	for _, c := range partyCards("red") {
		assert.Equal(t, 3, counts[c.Title], "party card %q", c.Title)
	}
}

func TestGenerateDeckBakesColor(t *testing.T) {
	deck := generateDeck()

	var hunts []Card
	for _, c := range deck {
		if c.Title == "Scavenger Hunt" {
			hunts = append(hunts, c)
		}
	}
	require.NotEmpty(t, hunts)

	// The color is chosen once per deck, so every copy matches, and no
	// unresolved template remains.
	for _, c := range hunts {
		assert.Equal(t, hunts[0].Text, c.Text)
		assert.NotContains(t, c.Text, "%s")

		found := false
		for _, color := range deckColors {
			if strings.Contains(c.Text, color) {
				found = true
				break
			}
		}
		assert.True(t, found, "no color baked into %q", c.Text)
	}
}

func TestGenerateDeckLeavesPlayerTokenUnresolved(t *testing.T) {
	deck := generateDeck()

	tokens := 0
	for _, c := range deck {
		if needsTarget(c) {
			tokens++
		}
	}

	// Both copies of each interactive card keep the token until drawn.
	assert.Equal(t, 2*len(interactiveCards()), tokens)
}

func TestShuffleCardsPreservesMultiset(t *testing.T) {
	cards := partyCards("blue")

	before := make(map[string]int)
	for _, c := range cards {
		before[c.Title]++
	}

	shuffleCards(cards)

	after := make(map[string]int)
	for _, c := range cards {
		after[c.Title]++
	}

	assert.Equal(t, before, after)
}

func TestNeedsTarget(t *testing.T) {
	assert.True(t, needsTarget(Card{Text: "Challenge {player} to a duel"}))
	assert.False(t, needsTarget(Card{Text: "Everyone drinks"}))
}
