package model

import (
	"fmt"
	"time"
)

// Pattern is an ordered sequence of board cell indices
type Pattern []int

// Validate checks the pattern is non-empty and every cell lies on a board
// with cellCount cells
func (p Pattern) Validate(cellCount int) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: pattern is empty", ErrInvalidPattern)
	}
	for i, cell := range p {
		if cell < 0 || cell >= cellCount {
			return fmt.Errorf("%w: cell %d at position %d is outside [0, %d)", ErrInvalidPattern, cell, i, cellCount)
		}
	}
	return nil
}

// Matches reports whether seq is element-wise equal to the pattern
func (p Pattern) Matches(seq []int) bool {
	if len(seq) != len(p) {
		return false
	}
	for i := range p {
		if p[i] != seq[i] {
			return false
		}
	}
	return true
}

// IsPrefix reports whether seq agrees with the start of the pattern
func (p Pattern) IsPrefix(seq []int) bool {
	if len(seq) > len(p) {
		return false
	}
	for i := range seq {
		if p[i] != seq[i] {
			return false
		}
	}
	return true
}

// Round is one reveal of a pattern within a session. Rounds are immutable.
type Round struct {
	SessionID SessionID
	Number    int
	Pattern   Pattern
	CreatedAt time.Time
}

// Attempt is a member's single submission against a round
type Attempt struct {
	SessionID    SessionID
	RoundNumber  int
	Identity     IdentityID
	Sequence     []int
	Correct      bool
	Points       int
	ReactionTime time.Duration
	SubmittedAt  time.Time
}
