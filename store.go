package main

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"
)

const (
	// Letters and digits minus the visually confusable I/1/O/0.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

// randomRoomCode draws codeLength characters uniformly from the
// alphabet. 256 is a multiple of the alphabet size, so the byte
// modulus is unbiased.
func randomRoomCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	out := make([]byte, codeLength)
	for i := range out {
		out[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(out)
}

func validCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for _, c := range code {
		if !strings.ContainsRune(codeAlphabet, c) {
			return false
		}
	}
	return true
}

// RoomStore maps room codes to rooms. It is the only shared mutable
// resource; rooms guard their own state.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	// swappable so tests can force collisions
	newCode func() string
}

func newRoomStore() *RoomStore {
	return &RoomStore{
		rooms:   make(map[string]*Room),
		newCode: randomRoomCode,
	}
}

// Create allocates a room under a fresh code, retrying on collision.
func (s *RoomStore) Create(cfg *Config) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		code := s.newCode()
		if _, exists := s.rooms[code]; exists {
			continue
		}
		room := newRoom(code, cfg)
		s.rooms[code] = room
		return room
	}
}

func (s *RoomStore) Get(code string) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

func (s *RoomStore) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
}

// evictStale removes every room idle since before the cutoff and
// returns the evicted codes.
func (s *RoomStore) evictStale(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for code, room := range s.rooms {
		if room.LastActivity().Before(cutoff) {
			delete(s.rooms, code)
			evicted = append(evicted, code)
		}
	}
	return evicted
}

// sweepLoop periodically evicts idle rooms and disconnects their
// subscribers.
func (s *RoomStore) sweepLoop(cfg *Config, b *Broadcaster) {
	ticker := time.NewTicker(cfg.sweepInterval)
	for range ticker.C {
		for _, code := range s.evictStale(time.Now().Add(-cfg.roomTimeout)) {
			b.CloseRoom(code)
			logf(cfg, "ROOMS: Evicted idle room %s", code)
		}
	}
}
