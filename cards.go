package main

import (
	"fmt"
	"math/rand"
	"strings"
)

// playerToken marks card text that needs a target player substituted at
// draw time.
const playerToken = "{player}"

// Card is an immutable catalog entry. Drawing copies it, so resolved
// text never leaks back into the catalog.
type Card struct {
	Title         string `json:"title"`
	Text          string `json:"text"`
	TimerDuration int    `json:"timer_duration,omitempty"`
	TargetPlayer  string `json:"target_player,omitempty"`
}

// DrawnCard is a discard pile entry, tagged with whoever drew it.
type DrawnCard struct {
	Card
	DiscardedBy string `json:"discarded_by"`
}

var deckColors = []string{"red", "blue", "green", "yellow", "purple", "orange", "pink", "black", "white"}

// interactiveCards target another player; the token is left unresolved
// until draw time.
func interactiveCards() []Card {
	return []Card{
		{Title: "Thumb War", Text: "Challenge {player} to a thumb war. Loser takes a shot!"},
		{Title: "Staring Contest", Text: "Staring contest with {player}. First to blink takes a shot!"},
		{Title: "Truth or Dare", Text: "Ask {player} truth or dare. Refuse = take a shot!"},
		{Title: "Rhyme Time", Text: "You and {player} take turns rhyming words for 20 seconds. First to fail takes a shot!", TimerDuration: 20},
		{Title: "Compliment Battle", Text: "You and {player} exchange compliments for 15 seconds. First to hesitate takes a shot!", TimerDuration: 15},
	}
}

// partyCards bake their color at deck generation, not per draw.
func partyCards(color string) []Card {
	return []Card{
		{Title: "Hyena Laugh", Text: "Laugh like a hyena for 10 seconds. Everyone else must keep a straight face. Fail = take a shot!", TimerDuration: 10},
		{Title: "Scavenger Hunt", Text: fmt.Sprintf("Find something %s in the room and bring it back in 30 seconds. Fail = take a shot!", color), TimerDuration: 30},
		{Title: "Statue", Text: "Freeze in your current pose for 20 seconds. Move = take a shot!", TimerDuration: 20},
		{Title: "Dance Off", Text: "Dance your heart out for 15 seconds. No dancing = take a shot!", TimerDuration: 15},
		{Title: "Story Time", Text: "Tell a 30-second story about a hyena. Boring story = take a shot!", TimerDuration: 30},
		{Title: "Never Have I Ever", Text: "Say something you've never done. Anyone who HAS done it takes a shot!"},
		{Title: "Categories", Text: "Pick a category. Everyone names something in that category. First to fail takes a shot!"},
		{Title: "Accent Challenge", Text: "Speak in a random accent for 20 seconds. Bad accent = take a shot!", TimerDuration: 20},
		{Title: "Sing It!", Text: "Sing the chorus of a song for 15 seconds. Refuse or forget words = take a shot!", TimerDuration: 15},
		{Title: "Tongue Twister", Text: "Say 'The Pumping Hyena happily hops' 5 times fast. Mess up = take a shot!"},
		{Title: "Impressions", Text: "Do your best celebrity impression for 10 seconds. Bad impression = take a shot!", TimerDuration: 10},
		{Title: "Backwards Talk", Text: "Speak only backwards for 15 seconds. Mess up = take a shot!", TimerDuration: 15},
		{Title: "Question Master", Text: "For the next minute, you're the Question Master. Anyone who answers your questions takes a shot!", TimerDuration: 60},
		{Title: "Silent Game", Text: "Stay completely silent for 30 seconds. Make a sound = take a shot!", TimerDuration: 30},
		{Title: "Compliment Yourself", Text: "Give yourself 3 genuine compliments in 10 seconds. Can't do it = take a shot!", TimerDuration: 10},
		{Title: "Movie Quote", Text: "Recite a famous movie quote. Can't think of one = take a shot!"},
		{Title: "Animal Sounds", Text: "Make 5 different animal sounds in 15 seconds. Fail = take a shot!", TimerDuration: 15},
		{Title: "Alphabet Game", Text: "Name something for each letter A-E in 10 seconds. Fail = take a shot!", TimerDuration: 10},
		{Title: "Two Truths One Lie", Text: "Tell 2 truths and 1 lie. Everyone guesses. If they're right, you take a shot!"},
		{Title: "Cheers!", Text: "Everyone takes a shot! (Yes, even you!)"},
		{Title: "Waterfall", Text: "Start drinking. Everyone else must drink until you stop. Go easy!"},
		{Title: "Social", Text: "Everyone takes a shot together! Cheers!"},
		{Title: "Lucky You", Text: "You're safe! Skip your shot this round."},
		{Title: "Make a Rule", Text: "Create a new rule for the game. Anyone who breaks it takes a shot!"},
		{Title: "Reverse", Text: "Turn order reverses! (Next player goes backwards)"},
	}
}

// generateDeck builds the weighted multiset (party cards appear three
// times, interactive cards twice) and shuffles it.
func generateDeck() []Card {
	color := deckColors[rand.Intn(len(deckColors))]

	interactive := interactiveCards()
	party := partyCards(color)

	all := make([]Card, 0, len(interactive)+len(party))
	all = append(all, interactive...)
	all = append(all, party...)

	deck := make([]Card, 0, 2*len(all)+len(party))
	deck = append(deck, all...)
	deck = append(deck, all...)
	deck = append(deck, party...)

	shuffleCards(deck)

	return deck
}

// Fisher-Yates
func shuffleCards(cards []Card) {
	for i := len(cards) - 1; i > 0; i-- {
		j := rand.Intn(i + 1)
		cards[i], cards[j] = cards[j], cards[i]
	}
}

func needsTarget(c Card) bool {
	return strings.Contains(c.Text, playerToken)
}
