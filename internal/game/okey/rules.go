package okey

import (
	"fmt"
	"time"
)

// ScoringScheme selects how losers are scored when a game is won.
type ScoringScheme string

const (
	// ScoreTileSum scores each loser the sum of the numbers left in hand.
	ScoreTileSum ScoringScheme = "tile_sum"
	// ScoreFixed scores each loser a flat penalty, doubled for a pairs win and
	// doubled again when the finishing discard is a wildcard.
	ScoreFixed ScoringScheme = "fixed"
)

// TimeoutPolicy selects the tile thrown for a player whose discard timer expires.
type TimeoutPolicy string

const (
	// TimeoutDiscardDrawn throws the last tile in hand, normally the one just drawn.
	TimeoutDiscardDrawn TimeoutPolicy = "discard_drawn"
	// TimeoutDiscardLowest throws the lowest numbered non-wildcard tile.
	TimeoutDiscardLowest TimeoutPolicy = "discard_lowest"
)

// Rules are fixed per game when it is created and persisted with its state.
type Rules struct {
	Hand            HandRules     `json:"hand" yaml:"hand"`
	TurnTimeLimit   time.Duration `json:"turnTimeLimit" yaml:"turn_time_limit"`
	Timeout         TimeoutPolicy `json:"timeout" yaml:"timeout_policy"`
	Scoring         ScoringScheme `json:"scoring" yaml:"scoring"`
	FixedPenalty    int           `json:"fixedPenalty" yaml:"fixed_penalty"`
	WildcardPenalty int           `json:"wildcardPenalty" yaml:"wildcard_penalty"`
	// EndOnEmptyPile finishes the game without a winner once a discard leaves
	// the draw pile empty.
	EndOnEmptyPile bool `json:"endOnEmptyPile" yaml:"end_on_empty_pile"`
}

// DefaultRules returns the table defaults.
func DefaultRules() Rules {
	return Rules{
		Hand:            DefaultHandRules(),
		TurnTimeLimit:   30 * time.Second,
		Timeout:         TimeoutDiscardDrawn,
		Scoring:         ScoreTileSum,
		FixedPenalty:    2,
		WildcardPenalty: 25,
		EndOnEmptyPile:  true,
	}
}

// Validate rejects values no game can run with.
func (r Rules) Validate() error {
	if r.TurnTimeLimit <= 0 {
		return fmt.Errorf("turn time limit must be positive, got %s", r.TurnTimeLimit)
	}
	switch r.Timeout {
	case TimeoutDiscardDrawn, TimeoutDiscardLowest:
	default:
		return fmt.Errorf("unknown timeout policy %q", r.Timeout)
	}
	switch r.Scoring {
	case ScoreTileSum, ScoreFixed:
	default:
		return fmt.Errorf("unknown scoring scheme %q", r.Scoring)
	}
	if r.FixedPenalty < 0 || r.WildcardPenalty < 0 {
		return fmt.Errorf("penalties must not be negative")
	}
	return nil
}
