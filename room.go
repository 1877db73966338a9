package main

import (
	"html"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	maxNameLength   = 20
	snapshotLogTail = 10

	// Expired timers stay visible (clamped to zero) this long so
	// clients can show a "time's up" state before the entry vanishes.
	timerGrace = 2 * time.Second
)

// Stats are per-player counters. Shots never go below zero.
type Stats struct {
	CardsDrawn      int `json:"cards_drawn"`
	Shots           int `json:"shots"`
	TimersCompleted int `json:"timers_completed"`
}

// Player is identity within a room. The display name is the identity;
// the id is an opaque session handle that never leaves the server.
type Player struct {
	Name  string
	id    string
	stats Stats
}

// Timer tracks a card countdown by its absolute end time. Remaining
// time is computed on read, never ticked down.
type Timer struct {
	id       string
	label    string
	duration int
	endTime  time.Time
	owner    string
}

// LastCard pairs a drawn card with its drawer.
type LastCard struct {
	Card   Card   `json:"card"`
	Player string `json:"player"`
}

// Room is the unit of isolation. Every mutation happens under mu, so
// operations on the same room never interleave; rooms are independent.
type Room struct {
	code string

	mu                 sync.Mutex
	players            []*Player
	deck               []Card
	discard            []DrawnCard
	timers             []Timer
	logs               []string
	lastCard           *LastCard
	pendingCard        *LastCard
	currentPlayerIndex int
	gameOver           bool
	lastActivity       time.Time

	maxLog       int
	confirmDraws bool
}

func newRoom(code string, cfg *Config) *Room {
	r := &Room{
		code:         code,
		deck:         generateDeck(),
		lastActivity: time.Now(),
		maxLog:       cfg.maxLog,
		confirmDraws: cfg.confirmDraws,
	}
	r.appendLogLocked("Welcome to The Pumping Hyena!")
	r.appendLogLocked("A wild party drinking game awaits!")
	return r
}

func (r *Room) Code() string {
	return r.code
}

func (r *Room) LastActivity() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

func (r *Room) appendLogLocked(line string) {
	r.logs = append(r.logs, line)
	if len(r.logs) > r.maxLog {
		r.logs = r.logs[len(r.logs)-r.maxLog:]
	}
}

func (r *Room) touchLocked() {
	r.lastActivity = time.Now()
}

func (r *Room) indexOfLocked(name string) int {
	for i, p := range r.players {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// sanitizeName trims, validates, and HTML-escapes a display name so it
// is safe to echo into broadcast markup.
func sanitizeName(name string) (string, error) {
	name = html.EscapeString(strings.TrimSpace(name))
	if name == "" {
		return "", ErrEmptyName
	}
	if len([]rune(name)) > maxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// Join appends a new player, or treats a name already in the roster as
// a reconnect. Returns the sanitized name actually stored.
func (r *Room) Join(name string) (string, error) {
	name, err := sanitizeName(name)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOfLocked(name) >= 0 {
		r.touchLocked()
		return name, nil
	}

	r.players = append(r.players, &Player{
		Name: name,
		id:   uuid.NewString(),
	})
	r.appendLogLocked(name + " joined the pack.")
	r.touchLocked()

	return name, nil
}

// Draw pops the top card for the named player, resolving targets,
// updating discard/log/stats/timers, and advancing the turn. The deck
// is recycled from the discard pile when empty.
func (r *Room) Draw(name string) (Card, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) == 0 {
		return Card{}, &NotYourTurnError{}
	}
	current := r.players[r.currentPlayerIndex]
	if current.Name != name {
		return Card{}, &NotYourTurnError{CurrentPlayer: current.Name}
	}
	if r.confirmDraws && r.pendingCard != nil {
		return Card{}, ErrCardPending
	}

	if len(r.deck) == 0 {
		if len(r.discard) == 0 {
			return Card{}, ErrDeckExhausted
		}
		r.deck = make([]Card, 0, len(r.discard))
		for _, d := range r.discard {
			r.deck = append(r.deck, d.Card)
		}
		shuffleCards(r.deck)
		r.discard = nil
		r.appendLogLocked("Deck reshuffled!")
	}

	card := r.deck[len(r.deck)-1]
	r.deck = r.deck[:len(r.deck)-1]

	if needsTarget(card) {
		others := make([]*Player, 0, len(r.players)-1)
		for _, p := range r.players {
			if p.Name != name {
				others = append(others, p)
			}
		}
		if len(others) > 0 {
			target := others[rand.Intn(len(others))]
			card.Text = strings.Replace(card.Text, playerToken, target.Name, 1)
			card.TargetPlayer = target.Name
		}
	}

	r.discard = append(r.discard, DrawnCard{Card: card, DiscardedBy: name})
	r.lastCard = &LastCard{Card: card, Player: name}

	logLine := name + " drew: " + card.Title
	if card.TargetPlayer != "" {
		logLine += " -> " + card.TargetPlayer
	}
	r.appendLogLocked(logLine)

	current.stats.CardsDrawn++

	if card.TimerDuration > 0 {
		r.timers = append(r.timers, Timer{
			id:       uuid.NewString(),
			label:    name + ": " + card.Title,
			duration: card.TimerDuration,
			endTime:  time.Now().Add(time.Duration(card.TimerDuration) * time.Second),
			owner:    name,
		})
		r.appendLogLocked("Timer started: " + strconv.Itoa(card.TimerDuration) + "s")
	}

	if r.confirmDraws {
		r.pendingCard = r.lastCard
	} else {
		r.advanceTurnLocked()
	}

	r.touchLocked()

	return card, nil
}

func (r *Room) advanceTurnLocked() {
	r.currentPlayerIndex = (r.currentPlayerIndex + 1) % len(r.players)
	r.appendLogLocked("Next up: " + r.players[r.currentPlayerIndex].Name)
}

// Confirm settles a pending card. Only the drawer may confirm; the
// turn advances once they do.
func (r *Room) Confirm(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pendingCard == nil {
		return ErrNoPendingCard
	}
	if r.pendingCard.Player != name {
		return ErrNotYourCard
	}

	r.pendingCard = nil
	if len(r.players) > 0 {
		r.advanceTurnLocked()
	}
	r.touchLocked()

	return nil
}

// Reset regenerates the deck and clears everything derived from play.
// Stats survive unless resetStats is set.
func (r *Room) Reset(resetStats bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deck = generateDeck()
	r.discard = nil
	r.timers = nil
	r.lastCard = nil
	r.pendingCard = nil
	r.gameOver = false

	if resetStats {
		for _, p := range r.players {
			p.stats = Stats{}
		}
	}

	r.appendLogLocked("Game reset!")
	r.touchLocked()
}

// End flags the game as over. State is kept so clients can render a
// final summary.
func (r *Room) End() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gameOver = true
	r.appendLogLocked("Game over! Final scores are in.")
	r.touchLocked()
}

// Leave removes the named player, self-service.
func (r *Room) Leave(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOfLocked(name)
	if i < 0 {
		return ErrUnknownPlayer
	}

	r.removeAtLocked(i)
	r.appendLogLocked(name + " left the pack.")
	r.touchLocked()

	return nil
}

// Kick removes a player at the host's request.
func (r *Room) Kick(target, requester string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) == 0 || r.players[0].Name != requester {
		return ErrNotHost
	}
	if target == requester {
		return ErrSelfKick
	}

	i := r.indexOfLocked(target)
	if i < 0 {
		return ErrUnknownPlayer
	}

	r.removeAtLocked(i)
	r.appendLogLocked(target + " was kicked by " + requester + ".")
	r.touchLocked()

	return nil
}

// removeAtLocked drops the player at i and keeps currentPlayerIndex
// pointing at a valid roster position.
func (r *Room) removeAtLocked(i int) {
	removed := r.players[i]
	r.players = append(r.players[:i], r.players[i+1:]...)

	if r.pendingCard != nil && r.pendingCard.Player == removed.Name {
		r.pendingCard = nil
	}

	if len(r.players) == 0 {
		r.currentPlayerIndex = 0
		return
	}
	if i < r.currentPlayerIndex {
		r.currentPlayerIndex--
	}
	if r.currentPlayerIndex >= len(r.players) {
		r.currentPlayerIndex = 0
	}
}

// PromoteHost moves the target to roster index 0. The current player
// pointer follows its player, so a promotion never skips a turn.
func (r *Room) PromoteHost(target, requester string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.players) == 0 || r.players[0].Name != requester {
		return ErrNotHost
	}

	i := r.indexOfLocked(target)
	if i < 0 {
		return ErrUnknownPlayer
	}
	if i == 0 {
		return nil
	}

	currentName := r.players[r.currentPlayerIndex].Name

	promoted := r.players[i]
	r.players = append(r.players[:i], r.players[i+1:]...)
	r.players = append([]*Player{promoted}, r.players...)

	if j := r.indexOfLocked(currentName); j >= 0 {
		r.currentPlayerIndex = j
	} else {
		r.currentPlayerIndex = 0
	}

	r.appendLogLocked(target + " is now the host.")
	r.touchLocked()

	return nil
}

// UpdateShots adjusts a player's shot count by delta, clamped at zero.
func (r *Room) UpdateShots(name string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOfLocked(name)
	if i < 0 {
		return ErrUnknownPlayer
	}

	r.players[i].stats.Shots += delta
	if r.players[i].stats.Shots < 0 {
		r.players[i].stats.Shots = 0
	}
	r.touchLocked()

	return nil
}

// ClearTimer removes a timer by id regardless of remaining time.
func (r *Room) ClearTimer(timerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dst := r.timers[:0]
	for _, t := range r.timers {
		if t.id != timerID {
			dst = append(dst, t)
		}
	}
	r.timers = dst
	r.touchLocked()
}

// Discard returns the discard pile, most recent first.
func (r *Room) Discard() []DrawnCard {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]DrawnCard, len(r.discard))
	for i, d := range r.discard {
		out[len(out)-1-i] = d
	}
	return out
}

type TimerView struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Duration  int     `json:"duration"`
	EndTime   int64   `json:"end_time"`
	Remaining float64 `json:"remaining"`
	Owner     string  `json:"owner"`
}

type PlayerView struct {
	Name string `json:"name"`
}

// Snapshot is the complete externally visible state of a room.
type Snapshot struct {
	Players            []PlayerView     `json:"players"`
	DeckCount          int              `json:"deck_count"`
	DiscardCount       int              `json:"discard_count"`
	Timers             []TimerView      `json:"timers"`
	Logs               []string         `json:"logs"`
	LastCard           *LastCard        `json:"last_card"`
	PendingCard        *LastCard        `json:"pending_card,omitempty"`
	CurrentPlayer      string           `json:"current_player"`
	CurrentPlayerIndex int              `json:"current_player_index"`
	Stats              map[string]Stats `json:"stats"`
	GameOver           bool             `json:"game_over"`
}

// Snapshot builds the outward-facing state as a function of room state
// and the current clock. Its only side effect is pruning fully expired
// timers; a timer within the grace window is still shown, clamped to
// zero remaining.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	views := make([]TimerView, 0, len(r.timers))
	kept := r.timers[:0]
	for _, t := range r.timers {
		remaining := t.endTime.Sub(now)
		if remaining > -timerGrace {
			views = append(views, TimerView{
				ID:        t.id,
				Label:     t.label,
				Duration:  t.duration,
				EndTime:   t.endTime.Unix(),
				Remaining: max(0, remaining.Seconds()),
				Owner:     t.owner,
			})
		}
		if remaining > 0 {
			kept = append(kept, t)
		} else if i := r.indexOfLocked(t.owner); i >= 0 {
			r.players[i].stats.TimersCompleted++
		}
	}
	r.timers = kept

	players := make([]PlayerView, len(r.players))
	stats := make(map[string]Stats, len(r.players))
	for i, p := range r.players {
		players[i] = PlayerView{Name: p.Name}
		stats[p.Name] = p.stats
	}

	logs := r.logs
	if len(logs) > snapshotLogTail {
		logs = logs[len(logs)-snapshotLogTail:]
	}

	current := ""
	if len(r.players) > 0 {
		current = r.players[r.currentPlayerIndex].Name
	}

	return Snapshot{
		Players:            players,
		DeckCount:          len(r.deck),
		DiscardCount:       len(r.discard),
		Timers:             views,
		Logs:               append([]string(nil), logs...),
		LastCard:           r.lastCard,
		PendingCard:        r.pendingCard,
		CurrentPlayer:      current,
		CurrentPlayerIndex: r.currentPlayerIndex,
		Stats:              stats,
		GameOver:           r.gameOver,
	}
}
