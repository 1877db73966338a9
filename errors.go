/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Gameplay rejections. Room state is left untouched whenever one of
// these is returned.
var (
	ErrRoomNotFound  = errors.New("Game not found")
	ErrDeckExhausted = errors.New("Deck empty")
	ErrEmptyName     = errors.New("Player name cannot be empty")
	ErrNameTooLong   = fmt.Errorf("Player name too long (max %d characters)", maxNameLength)
	ErrInvalidCode   = fmt.Errorf("Invalid room code. Room codes are %d characters.", codeLength)
	ErrUnknownPlayer = errors.New("Player not found")
	ErrNotHost       = errors.New("Only the host can do that")
	ErrSelfKick      = errors.New("You cannot kick yourself")
	ErrNoPendingCard = errors.New("No card is waiting to be confirmed")
	ErrNotYourCard   = errors.New("Only the drawer can confirm this card")
	ErrCardPending   = errors.New("Waiting for the last card to be confirmed")
)

// NotYourTurnError tells the rejected player whose turn it actually is.
type NotYourTurnError struct {
	CurrentPlayer string
}

func (e *NotYourTurnError) Error() string {
	if e.CurrentPlayer == "" {
		return "Not your turn! It's someone else's turn."
	}
	return fmt.Sprintf("Not your turn! It's %s's turn.", e.CurrentPlayer)
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
