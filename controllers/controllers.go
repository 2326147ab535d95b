// Package controllers holds the in-memory board state that the UI reads,
// keeping it synchronized with the store through optimistic updates: mutate
// locally, confirm against the gateway, and roll the local change back when
// the gateway call fails.
package controllers

import (
	"errors"
	"fmt"
	"log"
	"strings"
)

// ErrNotReady is returned when an operation runs before the controller has a
// store gateway and an owning user.
var ErrNotReady = errors.New("controller not ready")

// ErrForbidden is returned when a fetched board belongs to a different user
// than the one the controller acts for.
var ErrForbidden = errors.New("board owned by another user")

// optionalText normalizes user text input: blank means absent, never the
// empty string.
func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func logFail(msg string, err error) error {
	log.Printf("%s: %v", msg, err)
	return fmt.Errorf("%s: %w", msg, err)
}
